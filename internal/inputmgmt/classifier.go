package inputmgmt

import (
	"fmt"
	"regexp"
	"strings"

	"groundseg/internal/config"
	"groundseg/pkg/errors"
	"groundseg/pkg/models"
	"groundseg/pkg/obs"
)

// Kind is the tracking branch a notification falls into.
type Kind int

const (
	KindUntracked Kind = iota
	KindDatastrip
	KindTile
)

func (k Kind) String() string {
	switch k {
	case KindDatastrip:
		return "datastrip"
	case KindTile:
		return "tile"
	default:
		return "untracked"
	}
}

const procStationToken = "{PROC_STATION}"

var defaultPatterns = map[models.ProductFamily]string{
	models.FamilyL0Granule:    `^S2[AB]_OPER_MSI_L0__GR.*`,
	models.FamilyL0Datastrip:  `^S2[AB]_OPER_MSI_L0__DS.*`,
	models.FamilyL1AGranule:   `^S2[AB]_OPER_MSI_L1A_GR_{PROC_STATION}.*`,
	models.FamilyL1ADatastrip: `^S2[AB]_OPER_MSI_L1A_DS_{PROC_STATION}.*`,
	models.FamilyL1BGranule:   `^S2[AB]_OPER_MSI_L1B_GR_{PROC_STATION}.*`,
	models.FamilyL1BDatastrip: `^S2[AB]_OPER_MSI_L1B_DS_{PROC_STATION}.*`,
	models.FamilyL1CDatastrip: `^S2[AB]_OPER_MSI_L1C_DS_{PROC_STATION}.*`,
	models.FamilyL1CTile:      `^S2[AB]_OPER_MSI_L1C_TL_{PROC_STATION}.*`,
	models.FamilyL1CTrueColor: `^S2[AB]_OPER_MSI_L1C_TC_{PROC_STATION}.*\.jp2$`,
	models.FamilyL2ADatastrip: `^S2[AB]_OPER_MSI_L2A_DS_{PROC_STATION}.*\.00(\.tar)?$`,
	models.FamilyL2ATile:      `^S2[AB]_OPER_MSI_L2A_TL_{PROC_STATION}.*\.00(\.tar)?$`,
	models.FamilyL2ATrueColor: `^S2[AB]_OPER_MSI_L2A_TC_{PROC_STATION}.*\.jp2$`,
	models.FamilyHKTM:         `^.*PRD_HKTM.*`,
	models.FamilySAD:          `^.*AUX_SADATA.*`,
}

// DefaultPatterns returns the Sentinel-2 file name patterns with the
// processing station filled in.
func DefaultPatterns(procStation string) map[string]string {
	out := make(map[string]string, len(defaultPatterns))
	for family, pattern := range defaultPatterns {
		out[string(family)] = strings.ReplaceAll(pattern, procStationToken, regexp.QuoteMeta(procStation))
	}
	return out
}

// Patterns holds the compiled name pattern of each family that has one.
type Patterns struct {
	byFamily map[models.ProductFamily]*regexp.Regexp
}

// CompilePatterns merges the configured patterns over the defaults (when
// enabled). Keys must be product family names.
func CompilePatterns(cfg config.ClassificationConfig) (*Patterns, error) {
	merged := make(map[string]string)
	if cfg.UseDefaults {
		for family, pattern := range DefaultPatterns(cfg.ProcStation) {
			merged[family] = pattern
		}
	}
	for family, pattern := range cfg.Patterns {
		merged[strings.ToUpper(family)] = strings.ReplaceAll(pattern, procStationToken, regexp.QuoteMeta(cfg.ProcStation))
	}

	p := &Patterns{byFamily: make(map[models.ProductFamily]*regexp.Regexp, len(merged))}
	for name, pattern := range merged {
		family, err := models.ParseProductFamily(name)
		if err != nil {
			return nil, fmt.Errorf("classification pattern for %q: %w", name, err)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("classification pattern for %s: %w", family, err)
		}
		p.byFamily[family] = re
	}
	return p, nil
}

// Match reports whether name is acceptable for family. Families without a
// pattern accept any name.
func (p *Patterns) Match(family models.ProductFamily, name string) bool {
	if p == nil {
		return true
	}
	re, ok := p.byFamily[family]
	if !ok {
		return true
	}
	return re.MatchString(name)
}

// Classify picks the tracking branch of msg. The object key must be
// non-empty, the family known and the key's file name must match the
// family's pattern; otherwise a classification error is returned.
func Classify(msg *models.ProcessingMessage, patterns *Patterns) (Kind, error) {
	if !msg.ProductFamily.Valid() {
		return KindUntracked, classificationError(msg, "unknown product family")
	}
	if strings.TrimSpace(msg.KeyObjectStorage) == "" {
		return KindUntracked, classificationError(msg, "empty object key")
	}

	name := obs.KeyToName(msg.KeyObjectStorage)
	if !patterns.Match(msg.ProductFamily, name) {
		return KindUntracked, classificationError(msg,
			fmt.Sprintf("file name %q does not match the %s naming pattern", name, msg.ProductFamily))
	}

	switch {
	case msg.ProductFamily.IsDatastrip():
		return KindDatastrip, nil
	case msg.ProductFamily.IsTile():
		return KindTile, nil
	default:
		return KindUntracked, nil
	}
}

func classificationError(msg *models.ProcessingMessage, reason string) *errors.Error {
	return errors.ErrClassification.
		WithMessage(reason).
		WithDetail(errors.DetailProductFamily, string(msg.ProductFamily)).
		WithDetail(errors.DetailStoragePath, msg.StoragePath).
		WithDetail(errors.DetailKey, msg.KeyObjectStorage)
}
