package validator

import "github.com/emrgen/template/internal/model"

// Issue codes. Warnings never make a result invalid.
const (
	CodeEmptyContent            = "EMPTY_CONTENT"
	CodeInvalidJSON             = "INVALID_JSON"
	CodeInvalidVersion          = "INVALID_VERSION"
	CodeMissingTitle            = "MISSING_TITLE"
	CodeInvalidLanguage         = "INVALID_LANGUAGE"
	CodeInvalidPageFormat       = "INVALID_PAGE_FORMAT"
	CodeNegativeMargin          = "NEGATIVE_MARGIN"
	CodeInaccessibleVariable    = "INACCESSIBLE_VARIABLE"
	CodeUndeclaredVariable      = "UNDECLARED_VARIABLE"
	CodeMissingConditions       = "MISSING_CONDITIONS"
	CodeInvalidLogicType        = "INVALID_LOGIC_TYPE"
	CodeInvalidLogicItem        = "INVALID_LOGIC_ITEM"
	CodeEmptyGroup              = "EMPTY_GROUP"
	CodeInvalidOperator         = "INVALID_OPERATOR"
	CodeMissingRuleValue        = "MISSING_RULE_VALUE"
	CodeInvalidValueMode        = "INVALID_VALUE_MODE"
	CodeUndeclaredValueVariable = "UNDECLARED_VALUE_VARIABLE"
	CodeValidationCancelled     = "VALIDATION_CANCELLED"

	CodeMaxNestingExceeded  = "MAX_NESTING_EXCEEDED"
	CodeUnexpectedRuleValue = "UNEXPECTED_RULE_VALUE"
	CodeExpressionCompile   = "EXPRESSION_COMPILE"
)

// Issue locates one problem in a document.
type Issue struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

type Result struct {
	Valid                bool                        `json:"valid"`
	Errors               []Issue                     `json:"errors"`
	Warnings             []Issue                     `json:"warnings"`
	ExtractedInjectables []*model.RevisionInjectable `json:"extractedInjectables,omitempty"`
}

func newResult() *Result {
	return &Result{Errors: []Issue{}, Warnings: []Issue{}}
}

func (r *Result) addError(code, path, message string) {
	r.Errors = append(r.Errors, Issue{Code: code, Path: path, Message: message})
}

func (r *Result) addWarning(code, path, message string) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Path: path, Message: message})
}

func (r *Result) finish() *Result {
	r.Valid = len(r.Errors) == 0
	return r
}

// HasError reports whether the result carries an error with code.
func (r *Result) HasError(code string) bool {
	for _, issue := range r.Errors {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func cancelled(err error) *Result {
	res := newResult()
	res.addError(CodeValidationCancelled, "", err.Error())
	return res.finish()
}
