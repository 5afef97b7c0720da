package models

import (
	"encoding/json"
	"fmt"
)

// ProductFamily tags every notification with the category of product it
// describes. The set is closed: unknown values fail to parse.
type ProductFamily string

const (
	FamilyL0Granule    ProductFamily = "S2_L0_GR"
	FamilyL0Datastrip  ProductFamily = "S2_L0_DS"
	FamilyL1AGranule   ProductFamily = "S2_L1A_GR"
	FamilyL1ADatastrip ProductFamily = "S2_L1A_DS"
	FamilyL1BGranule   ProductFamily = "S2_L1B_GR"
	FamilyL1BDatastrip ProductFamily = "S2_L1B_DS"
	FamilyL1CDatastrip ProductFamily = "S2_L1C_DS"
	FamilyL1CTile      ProductFamily = "S2_L1C_TL"
	FamilyL1CTrueColor ProductFamily = "S2_L1C_TC"
	FamilyL2ADatastrip ProductFamily = "S2_L2A_DS"
	FamilyL2ATile      ProductFamily = "S2_L2A_TL"
	FamilyL2ATrueColor ProductFamily = "S2_L2A_TC"
	FamilyAux          ProductFamily = "S2_AUX"
	FamilyHKTM         ProductFamily = "S2_HKTM"
	FamilySAD          ProductFamily = "S2_SAD"
	FamilyEDRSSession  ProductFamily = "EDRS_SESSION"
)

var productFamilies = []ProductFamily{
	FamilyL0Granule,
	FamilyL0Datastrip,
	FamilyL1AGranule,
	FamilyL1ADatastrip,
	FamilyL1BGranule,
	FamilyL1BDatastrip,
	FamilyL1CDatastrip,
	FamilyL1CTile,
	FamilyL1CTrueColor,
	FamilyL2ADatastrip,
	FamilyL2ATile,
	FamilyL2ATrueColor,
	FamilyAux,
	FamilyHKTM,
	FamilySAD,
	FamilyEDRSSession,
}

// ProductFamilies lists every known family in declaration order.
func ProductFamilies() []ProductFamily {
	out := make([]ProductFamily, len(productFamilies))
	copy(out, productFamilies)
	return out
}

func (f ProductFamily) Valid() bool {
	for _, known := range productFamilies {
		if f == known {
			return true
		}
	}
	return false
}

// IsDatastrip reports whether f is a datastrip descriptor family whose
// arrival opens a completion-tracking record.
func (f ProductFamily) IsDatastrip() bool {
	switch f {
	case FamilyL0Datastrip, FamilyL1ADatastrip, FamilyL1BDatastrip, FamilyL1CDatastrip, FamilyL2ADatastrip:
		return true
	}
	return false
}

// IsTile reports whether f is a tile family that completes part of a datastrip.
func (f ProductFamily) IsTile() bool {
	switch f {
	case FamilyL1CTile, FamilyL2ATile:
		return true
	}
	return false
}

// DatastripFamily returns the datastrip family a tile family belongs to.
// Any other family is returned unchanged.
func (f ProductFamily) DatastripFamily() ProductFamily {
	switch f {
	case FamilyL1CTile:
		return FamilyL1CDatastrip
	case FamilyL2ATile:
		return FamilyL2ADatastrip
	}
	return f
}

func (f ProductFamily) String() string {
	return string(f)
}

func ParseProductFamily(s string) (ProductFamily, error) {
	f := ProductFamily(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown product family %q", s)
	}
	return f, nil
}

func (f *ProductFamily) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseProductFamily(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MissingOutputProductType names an output category a processing run was
// expected to produce.
type MissingOutputProductType string

const (
	MissingL0Granule   MissingOutputProductType = "L0_GR"
	MissingL0Datastrip MissingOutputProductType = "L0_DS"
	MissingL1Granule   MissingOutputProductType = "L1_GR"
	MissingL1Datastrip MissingOutputProductType = "L1_DS"
	MissingHKTM        MissingOutputProductType = "HKTM"
	MissingSAD         MissingOutputProductType = "SAD"
)

// MissingOutputType maps an output family onto the category reported when
// a run produced nothing for it.
func MissingOutputType(f ProductFamily) (MissingOutputProductType, bool) {
	switch f {
	case FamilyL0Granule:
		return MissingL0Granule, true
	case FamilyL0Datastrip:
		return MissingL0Datastrip, true
	case FamilyL1AGranule, FamilyL1BGranule:
		return MissingL1Granule, true
	case FamilyL1ADatastrip, FamilyL1BDatastrip:
		return MissingL1Datastrip, true
	case FamilyHKTM:
		return MissingHKTM, true
	case FamilySAD:
		return MissingSAD, true
	}
	return "", false
}
