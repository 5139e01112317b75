package collector

// EvaluateStatus вычисляет сводный статус по собранным метрикам.
// Любая критичная проблема дает critical, любое предупреждение could-be-better.
func EvaluateStatus(s *HealthSnapshot) SystemStatus {
	var critical, warnings int

	if s.RAM != nil {
		switch s.RAM.PressureLevel {
		case PressureCritical:
			critical++
		case PressureWarn:
			warnings++
		}
	}

	if s.CPU != nil {
		switch {
		case s.CPU.TotalUsagePercentage > 90:
			critical++
		case s.CPU.TotalUsagePercentage > 70:
			warnings++
		}
	}

	if s.Disk != nil {
		switch {
		case s.Disk.TotalUsedPercentage > 95:
			critical++
		case s.Disk.TotalUsedPercentage > 85:
			warnings++
		}
	}

	if s.Battery != nil {
		if s.Battery.Condition != ConditionNormal {
			warnings++
		}
		if !s.Battery.IsPluggedIn && s.Battery.Percentage < 10 {
			critical++
		}
	}

	switch {
	case critical > 0:
		return StatusCritical
	case warnings > 0:
		return StatusCouldBeBetter
	default:
		return StatusExcellent
	}
}
