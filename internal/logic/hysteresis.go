package logic

// IsDry reports whether reading is strictly on the dry side of the dry
// threshold. A reading equal to Dry is not dry.
func (p PlantProfile) IsDry(reading uint16) bool {
	if p.Polarity == DryHigh {
		return reading > p.Dry
	}
	return reading < p.Dry
}

// IsWet reports whether reading has reached or crossed the wet threshold.
// Watering stops on the first reading for which IsWet is true.
func (p PlantProfile) IsWet(reading uint16) bool {
	if p.Polarity == DryHigh {
		return reading <= p.Wet
	}
	return reading >= p.Wet
}

// Inverted reports whether the thresholds overlap so that a reading can be
// dry and wet at once. Such a plant is watered for zero time; the caller
// may want to warn about it at startup. Equal thresholds do not overlap:
// the plant is watered until it reads the threshold.
func (p PlantProfile) Inverted() bool {
	if p.Polarity == DryHigh {
		return p.Wet > p.Dry
	}
	return p.Wet < p.Dry
}
