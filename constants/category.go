package constants

// Spending categories assigned by the rule-based categorizer.
const (
	Groceries     = "groceries"
	Transport     = "transport"
	FoodAndDrink  = "food_and_drink"
	Subscriptions = "subscriptions"
	Income        = "income"
)

// Expense articles (tax taxonomy tags, distinct from spending categories).
const (
	ArticleTravelCosts        = "travel_costs"
	ArticleMeals              = "meals_and_entertainment"
	ArticleSoftwareServices   = "software_and_services"
	ArticleHouseholdSupplies  = "household_supplies"
)

// CategoryRule maps description keywords to a category and its tax treatment.
// Rules are evaluated in order; the first rule with a matching keyword wins,
// so tie-break order is part of the table itself.
type CategoryRule struct {
	Keywords   []string
	Category   string
	Article    string
	Deductible bool
}

// DefaultCategoryRules is the static keyword ruleset consulted when no prior
// human correction exists for a vendor. Groceries is ordered ahead of
// food_and_drink so supermarket receipts mentioning food land in groceries.
var DefaultCategoryRules = []CategoryRule{
	{
		Keywords:   []string{"grocer", "groceries", "supermarket", "tesco", "sainsbury", "aldi", "lidl", "waitrose"},
		Category:   Groceries,
		Article:    ArticleHouseholdSupplies,
		Deductible: false,
	},
	{
		Keywords:   []string{"uber", "taxi", "train", "rail", "bus", "fuel", "petrol", "parking", "transport"},
		Category:   Transport,
		Article:    ArticleTravelCosts,
		Deductible: true,
	},
	{
		Keywords:   []string{"restaurant", "cafe", "coffee", "bar", "pub", "pizza", "takeaway", "food", "drink"},
		Category:   FoodAndDrink,
		Article:    ArticleMeals,
		Deductible: false,
	},
	{
		Keywords:   []string{"subscription", "netflix", "spotify", "membership", "saas", "license"},
		Category:   Subscriptions,
		Article:    ArticleSoftwareServices,
		Deductible: true,
	},
	{
		Keywords:   []string{"salary", "payroll", "dividend", "interest paid to you"},
		Category:   Income,
		Article:    "",
		Deductible: false,
	},
}
