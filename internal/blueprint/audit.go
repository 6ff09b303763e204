package blueprint

// AuditResult grades how closely a live tenant matches a blueprint.
type AuditResult struct {
	Plan            *Plan
	ComplianceScore float64
	TotalResources  int
	Matched         int
}

// Audit scores a plan. Extra live resources do not count against the score;
// everything the blueprint asks for does.
func Audit(plan *Plan) *AuditResult {
	total, matched := 0, 0
	for _, action := range plan.Actions {
		if action.Op != OpExtra {
			total++
		}
		if action.Op == OpOK {
			matched++
		}
	}
	score := 0.0
	if total > 0 {
		score = float64(matched) / float64(total) * 100
	}
	return &AuditResult{
		Plan:            plan,
		ComplianceScore: score,
		TotalResources:  total,
		Matched:         matched,
	}
}
