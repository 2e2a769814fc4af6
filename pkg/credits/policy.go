package credits

// Static credit policy. Quotas and costs are deliberately compiled in:
// changing them is a deploy, not a config edit, and every caller shares
// one source of truth.

const (
	quotaPersonal = 100
	quotaPro      = 500
	quotaAcademia = 1000

	costTest         = 5
	costStudyGuide   = 4
	costSummary      = 3
	costPresentation = 8
)

// QuotaFor returns the monthly credit quota for a plan.
//
// Unknown or legacy plan values fall back to the personal quota. The
// fallback is fail-open on purpose: a malformed plan stored by an older
// release must never lock a user out, it just gets the most conservative
// quota.
func QuotaFor(p Plan) int {
	switch p {
	case PlanPro:
		return quotaPro
	case PlanAcademia:
		return quotaAcademia
	case PlanPersonal:
		return quotaPersonal
	default:
		// Legacy/unknown plan value: treat as personal.
		return quotaPersonal
	}
}

// CostFor returns the credit cost of generating one material of the
// given type. Unknown types cost the same as a test, the most expensive
// common case.
func CostFor(t MaterialType) int {
	switch t {
	case MaterialTest:
		return costTest
	case MaterialStudyGuide:
		return costStudyGuide
	case MaterialSummary:
		return costSummary
	case MaterialPresentation:
		return costPresentation
	default:
		// Legacy/unknown type value: charge the test rate.
		return costTest
	}
}
