package incident

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Patch is a partial update of an incident. Nil fields are left unchanged and
// unknown keys are ignored. ClosingReasonSet distinguishes an explicit null
// from an absent key.
type Patch struct {
	OccurredAt    *string `mapstructure:"occurredAt"`
	Location      *string `mapstructure:"location"`
	CrimeType     *string `mapstructure:"crimeType"`
	Description   *string `mapstructure:"description"`
	Status        *string `mapstructure:"status"`
	ClosingReason *string `mapstructure:"closingReason"`

	ClosingReasonSet bool `mapstructure:"-"`
}

// DecodePatch builds a Patch from a decoded JSON object.
func DecodePatch(raw map[string]any) (Patch, error) {
	var patch Patch

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &patch,
		TagName: "mapstructure",
	})
	if err != nil {
		return Patch{}, fmt.Errorf("create patch decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Patch{}, fmt.Errorf("decode patch: %w", err)
	}

	_, patch.ClosingReasonSet = raw["closingReason"]
	return patch, nil
}

// Empty reports whether the patch touches no field.
func (p Patch) Empty() bool {
	return p.OccurredAt == nil &&
		p.Location == nil &&
		p.CrimeType == nil &&
		p.Description == nil &&
		p.Status == nil &&
		!p.ClosingReasonSet
}
