package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/emrgen/template/internal/injectable"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	accessible []injectable.Accessible
	err        error
}

func (s *staticLister) List(ctx context.Context, workspaceID uuid.UUID) ([]injectable.Accessible, error) {
	return s.accessible, s.err
}

var (
	workspaceID = uuid.New()
	revisionID  = uuid.New()
	nameID      = uuid.NewString()
)

func newValidator() *Validator {
	return New(&staticLister{accessible: []injectable.Accessible{
		{Key: "name", ID: nameID, SourceType: "INTERNAL"},
		{Key: "total", ID: uuid.NewString(), SourceType: "INTERNAL"},
		{Key: "current_date", ID: uuid.NewString(), IsGlobal: true, SourceType: "EXTERNAL"},
	}}, Options{})
}

// document builds a publishable document with the given declared ids and body nodes.
func document(vars []string, nodes ...string) []byte {
	quoted := make([]string, len(vars))
	for i, v := range vars {
		quoted[i] = fmt.Sprintf("%q", v)
	}

	return []byte(fmt.Sprintf(`{
  "version": "1.0.0",
  "meta": {"title": "Invoice", "language": "en"},
  "pageConfig": {"formatId": "A4", "width": 210, "height": 297, "margins": {"top": 10, "bottom": 10, "left": 10, "right": 10}},
  "variableIds": [%s],
  "content": {"type": "doc", "content": [%s]}
}`, strings.Join(quoted, ","), strings.Join(nodes, ",")))
}

func injector(id string) string {
	return fmt.Sprintf(`{"type":"injector","attrs":{"variableId":%q}}`, id)
}

func conditional(conditions string, expression string) string {
	return fmt.Sprintf(`{"type":"conditional","attrs":{"conditions":%s,"expression":%q},"content":[]}`, conditions, expression)
}

func rule(id, op, value string) string {
	if value == "" {
		return fmt.Sprintf(`{"type":"rule","variableId":%q,"operator":%q}`, id, op)
	}
	return fmt.Sprintf(`{"type":"rule","variableId":%q,"operator":%q,"value":{"mode":"text","value":%q}}`, id, op, value)
}

// nested builds groups down to depth target, root being depth 0.
func nested(level, target int) string {
	if level == target {
		return fmt.Sprintf(`{"type":"group","logic":"AND","children":[%s]}`, rule("name", "not_empty", ""))
	}
	return fmt.Sprintf(`{"type":"group","logic":"OR","children":[%s]}`, nested(level+1, target))
}

func codes(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Code)
	}
	return out
}

func TestValidateForPublish_ExtractsDeclaredInjectable(t *testing.T) {
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, injector("name")))
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	require.Len(t, res.ExtractedInjectables, 1)

	extracted := res.ExtractedInjectables[0]
	assert.Equal(t, revisionID.String(), extracted.RevisionID)
	require.NotNil(t, extracted.WorkspaceInjectableID)
	assert.Equal(t, nameID, *extracted.WorkspaceInjectableID)
	assert.Nil(t, extracted.SystemInjectableKey)
}

func TestValidateForPublish_GlobalInjectableByKey(t *testing.T) {
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"current_date", "name", "current_date"}, injector("current_date")))
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Len(t, res.ExtractedInjectables, 2)

	require.NotNil(t, res.ExtractedInjectables[0].SystemInjectableKey)
	assert.Equal(t, "current_date", *res.ExtractedInjectables[0].SystemInjectableKey)
	assert.Equal(t, nameID, res.ExtractedInjectables[1].Key())
}

func TestValidateForPublish_UndeclaredInjector(t *testing.T) {
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, injector("email")))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeUndeclaredVariable, res.Errors[0].Code)
	assert.Equal(t, "content.injector[0].attrs.variableId", res.Errors[0].Path)
	assert.Nil(t, res.ExtractedInjectables)
}

func TestValidateForPublish_ReferenceClosure(t *testing.T) {
	body := []string{
		injector("name"),
		injector("email"),
		conditional(fmt.Sprintf(`{"type":"group","logic":"AND","children":[%s,%s]}`,
			rule("phone", "not_empty", ""), rule("name", "not_empty", "")), ""),
		injector("email"),
	}
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, body...))
	require.NoError(t, err)

	assert.Equal(t, []Issue{
		{Code: CodeUndeclaredVariable, Path: "content.injector[1].attrs.variableId", Message: `variable "email" is not declared in variableIds`},
		{Code: CodeUndeclaredVariable, Path: "content.injector[2].attrs.variableId", Message: `variable "email" is not declared in variableIds`},
		{Code: CodeUndeclaredVariable, Path: "content.conditional[0].attrs.conditions.children[0].variableId", Message: `variable "phone" is not declared in variableIds`},
	}, res.Errors)
}

func TestValidateForPublish_EmptyGroup(t *testing.T) {
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, conditional(`{"type":"group","logic":"AND","children":[]}`, "")))
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeEmptyGroup, res.Errors[0].Code)
	assert.Equal(t, "content.conditional[0].attrs.conditions.children", res.Errors[0].Path)
	assert.Empty(t, res.Warnings)
}

func TestValidateForPublish_NestingBoundary(t *testing.T) {
	v := newValidator()

	atMax, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, conditional(nested(0, DefaultMaxDepth), "")))
	require.NoError(t, err)
	assert.True(t, atMax.Valid)
	assert.Empty(t, atMax.Warnings)

	deeper, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, conditional(nested(0, DefaultMaxDepth+1), "")))
	require.NoError(t, err)
	assert.True(t, deeper.Valid)
	require.Len(t, deeper.Warnings, 1)
	assert.Equal(t, CodeMaxNestingExceeded, deeper.Warnings[0].Code)
	assert.Equal(t, "content.conditional[0].attrs.conditions.children[0].children[0].children[0].children[0]", deeper.Warnings[0].Path)
}

func TestValidateForPublish_TruncatedBranchIsNotChecked(t *testing.T) {
	deep := `{"type":"group","logic":"AND","children":[{"type":"group","logic":"AND","children":[{"type":"rule","variableId":"ghost","operator":"bogus"}]}]}`
	res, err := New(&staticLister{accessible: []injectable.Accessible{{Key: "name", ID: nameID}}}, Options{MaxDepth: 1}).
		ValidateForPublish(context.Background(), workspaceID, revisionID,
			document([]string{"name"}, conditional(fmt.Sprintf(`{"type":"group","logic":"AND","children":[%s]}`, deep), "")))
	require.NoError(t, err)

	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{CodeMaxNestingExceeded}, codes(res.Warnings))
}

func TestValidateForPublish_Rules(t *testing.T) {
	tests := []struct {
		name     string
		rule     string
		errors   []string
		warnings []string
	}{
		{
			name: "value operator with text value",
			rule: rule("total", "gt", "100"),
		},
		{
			name:   "unknown operator",
			rule:   rule("total", "between", "1"),
			errors: []string{CodeInvalidOperator},
		},
		{
			name:   "missing value",
			rule:   rule("total", "eq", ""),
			errors: []string{CodeMissingRuleValue},
		},
		{
			name:     "value on no-value operator",
			rule:     rule("total", "is_true", "yes"),
			warnings: []string{CodeUnexpectedRuleValue},
		},
		{
			name: "variable value declared",
			rule: `{"type":"rule","variableId":"total","operator":"eq","value":{"mode":"variable","value":"name"}}`,
		},
		{
			name:   "variable value undeclared",
			rule:   `{"type":"rule","variableId":"total","operator":"eq","value":{"mode":"variable","value":"tax"}}`,
			errors: []string{CodeUndeclaredValueVariable},
		},
		{
			name:   "invalid value mode",
			rule:   `{"type":"rule","variableId":"total","operator":"eq","value":{"mode":"regex","value":"x"}}`,
			errors: []string{CodeInvalidValueMode},
		},
		{
			name:   "unknown logic item",
			rule:   `{"type":"clause","variableId":"total"}`,
			errors: []string{CodeInvalidLogicItem},
		},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := fmt.Sprintf(`{"type":"group","logic":"AND","children":[%s]}`, tt.rule)
			res, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID,
				document([]string{"name", "total"}, conditional(group, "")))
			require.NoError(t, err)

			assert.ElementsMatch(t, tt.errors, codes(res.Errors))
			assert.ElementsMatch(t, tt.warnings, codes(res.Warnings))
			assert.Equal(t, len(tt.errors) == 0, res.Valid)
		})
	}
}

func TestValidateForPublish_InvalidLogicType(t *testing.T) {
	group := fmt.Sprintf(`{"type":"group","logic":"XOR","children":[%s]}`, rule("name", "empty", ""))
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, conditional(group, "")))
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeInvalidLogicType, res.Errors[0].Code)
	assert.Equal(t, "content.conditional[0].attrs.conditions.logic", res.Errors[0].Path)
}

func TestValidateForPublish_MissingConditions(t *testing.T) {
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, `{"type":"conditional","attrs":{},"content":[]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{CodeMissingConditions}, codes(res.Errors))
}

func TestValidateForPublish_ExpressionIsAdvisory(t *testing.T) {
	group := fmt.Sprintf(`{"type":"group","logic":"AND","children":[%s]}`, rule("name", "not_empty", ""))
	v := newValidator()

	res, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, conditional(group, "name")))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	for _, expression := range []string{"name ==", "unknown_symbol"} {
		res, err = v.ValidateForPublish(context.Background(), workspaceID, revisionID,
			document([]string{"name"}, conditional(group, expression)))
		require.NoError(t, err)

		assert.True(t, res.Valid, expression)
		assert.Equal(t, []string{CodeExpressionCompile}, codes(res.Warnings), expression)
		assert.Equal(t, "content.conditional[0].attrs.expression", res.Warnings[0].Path)
	}
}

func TestValidateForPublish_ExpressionCompilesUntyped(t *testing.T) {
	group := fmt.Sprintf(`{"type":"group","logic":"AND","children":[%s]}`, rule("name", "not_empty", ""))
	v := newValidator()

	for _, expression := range []string{
		`total > 10`,
		`name contains "x"`,
		`len(name) > 0`,
		`name == "Acme"`,
		`upper(name) startsWith "A" && total >= 2.5`,
		`let n = len(name); n > 1`,
	} {
		res, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID,
			document([]string{"name", "total"}, conditional(group, expression)))
		require.NoError(t, err)

		assert.True(t, res.Valid, expression)
		assert.Empty(t, res.Warnings, expression)
	}

	res, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, conditional(group, "ghost > 1 || ghost < 0")))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, `"ghost"`)
}

func TestValidateForPublish_Structure(t *testing.T) {
	raw := []byte(`{
  "version": "1.0",
  "meta": {"title": "", "language": "fr"},
  "pageConfig": {"formatId": "A5", "margins": {"top": -1, "bottom": 0, "left": 2, "right": -3}},
  "variableIds": [],
  "content": {"type": "doc"}
}`)
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID, raw)
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Equal(t, []string{
		"version", "meta.title", "meta.language", "pageConfig.formatId",
		"pageConfig.margins.top", "pageConfig.margins.right",
	}, func() []string {
		var paths []string
		for _, issue := range res.Errors {
			paths = append(paths, issue.Path)
		}
		return paths
	}())
	assert.Equal(t, []string{
		CodeInvalidVersion, CodeMissingTitle, CodeInvalidLanguage, CodeInvalidPageFormat,
		CodeNegativeMargin, CodeNegativeMargin,
	}, codes(res.Errors))
	assert.Nil(t, res.ExtractedInjectables)
}

func TestValidateForPublish_InaccessibleVariable(t *testing.T) {
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name", "ssn"}, injector("name")))
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeInaccessibleVariable, res.Errors[0].Code)
	assert.Equal(t, "variableIds[1]", res.Errors[0].Path)
	assert.Nil(t, res.ExtractedInjectables)
}

func TestValidateForPublish_Idempotent(t *testing.T) {
	v := newValidator()
	raw := document([]string{"name", "total", "current_date", "ssn"},
		injector("name"), injector("email"),
		conditional(nested(0, 5), "AND name"))

	first, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID, raw)
	require.NoError(t, err)
	second, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID, raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	valid := document([]string{"name", "total", "current_date"}, injector("name"))
	first, err = v.ValidateForPublish(context.Background(), workspaceID, revisionID, valid)
	require.NoError(t, err)
	second, err = v.ValidateForPublish(context.Background(), workspaceID, revisionID, valid)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first.ExtractedInjectables, 3)
}

func TestDraftLeniency(t *testing.T) {
	v := newValidator()

	for _, raw := range [][]byte{nil, []byte(""), []byte("  "), []byte("null")} {
		assert.True(t, v.ValidateForDraft(raw).Valid)

		res, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID, raw)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, []string{CodeEmptyContent}, codes(res.Errors))
	}
}

func TestValidateForDraft(t *testing.T) {
	v := newValidator()

	// semantic problems are fine in a draft
	res := v.ValidateForDraft(document([]string{}, injector("email")))
	assert.True(t, res.Valid)
	assert.Nil(t, res.ExtractedInjectables)

	res = v.ValidateForDraft([]byte(`{"content": `))
	assert.False(t, res.Valid)
	assert.Equal(t, []string{CodeInvalidJSON}, codes(res.Errors))
}

func TestValidateForPublish_MalformedIsFatal(t *testing.T) {
	res, err := newValidator().ValidateForPublish(context.Background(), workspaceID, revisionID,
		[]byte(`{"version": 1}`))
	require.NoError(t, err)
	assert.Equal(t, []string{CodeInvalidJSON}, codes(res.Errors))
}

func TestValidateForPublish_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newValidator().ValidateForPublish(ctx, workspaceID, revisionID,
		document([]string{"email"}, injector("phone")))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Equal(t, []string{CodeValidationCancelled}, codes(res.Errors))
	assert.Empty(t, res.Warnings)
	assert.Nil(t, res.ExtractedInjectables)
}

func TestValidateForPublish_LookupFailure(t *testing.T) {
	v := New(&staticLister{err: errors.New("registry down")}, Options{})

	res, err := v.ValidateForPublish(context.Background(), workspaceID, revisionID,
		document([]string{"name"}, injector("name")))
	assert.Error(t, err)
	assert.Nil(t, res)
}
