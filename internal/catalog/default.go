package catalog

import "github.com/clarify-app/settle/internal/model"

// DefaultCatalog returns the built-in institution data for Israeli banks
// and card issuers, in Hebrew, English and common transliterations.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultPatterns, defaultKeywords, defaultVendorKeywords, defaultRepaymentNames)
}

var defaultPatterns = map[model.AccountType][]string{
	model.AccountTypeBank: {
		"פועלים", "hapoalim", "bank hapoalim",
		"לאומי", "leumi", "bank leumi",
		"דיסקונט", "discount", "mercantile", "מרכנתיל",
		"מזרחי טפחות", "mizrahi", "tefahot",
		"הבינלאומי", "fibi", "בנק אגוד", "union bank",
		"יהב", "yahav",
		"one zero", "וואן זירו",
	},
	model.AccountTypeCreditCard: {
		"ויזה", "visa", "מסטרקארד", "mastercard",
		"ישראכרט", "isracard",
		"כ.א.ל", "cal", "ויזה כאל", "visa cal",
		"מקס", "max", "לאומי קארד", "leumi card",
		"אמריקן אקספרס", "amex", "american express",
		"דיינרס", "diners",
	},
	model.AccountTypePension: {
		"קרן פנסיה", "פנסיה", "pension",
		"מגדל", "migdal", "קרן פנסיה מגדל", "מנורה", "menora",
		"הראל", "harel", "כלל", "clal", "פניקס", "phoenix",
		"אלטשולר שחם", "altshuler",
	},
	model.AccountTypeSavings: {
		"קופת גמל", "גמל", "provident",
		"השתלמות", "hishtalmut", "keren hishtalmut",
		"פיקדון", "deposit",
	},
	model.AccountTypeInvestment: {
		"תיק השקעות", "investment", "ניירות ערך", "securities",
		"מיטב", "meitav", "פסגות", "psagot",
	},
}

var defaultKeywords = map[model.AccountType][]string{
	model.AccountTypeBank:       {"בנק", "bank", "עו\"ש", "checking"},
	model.AccountTypeCreditCard: {"כרטיס אשראי", "אשראי", "credit card", "card"},
	model.AccountTypePension:    {"פנסיה", "pension"},
	model.AccountTypeSavings:    {"גמל", "חיסכון", "savings"},
	model.AccountTypeInvestment: {"השקעות", "invest"},
}

// defaultVendorKeywords recognize which card a bank repayment line pays
// off, e.g. "ויזה כאל 1456" on a hapoalim statement.
var defaultVendorKeywords = map[string][]string{
	"max":       {"מקס", "max"},
	"visaCal":   {"כ.א.ל", "cal", "ויזה כאל", "visa cal"},
	"isracard":  {"ישראכרט", "isracard"},
	"amex":      {"אמקס", "אמריקן אקספרס", "amex", "american express"},
	"leumiCard": {"לאומי כרט", "leumi card"},
	"diners":    {"דיינרס", "diners"},
}

// defaultRepaymentNames are the category names, across the languages the
// ingestion layer seeds, whose transactions are card repayments.
var defaultRepaymentNames = []string{
	"פרעון כרטיס אשראי",
	"החזר כרטיס אשראי",
	"Credit Card Repayment",
	"Card repayment",
	"Credit card repayment",
	"Remboursement de carte de crédit",
}
