package validator

import (
	"fmt"
	"strings"

	"github.com/emrgen/template/internal/content"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
)

// logicChecker walks every conditional node of a document.
type logicChecker struct {
	doc      *content.Document
	declared map[string]struct{}
	maxDepth int
	res      *Result
}

func newLogicChecker(doc *content.Document, maxDepth int, res *Result) *logicChecker {
	return &logicChecker{
		doc:      doc,
		declared: doc.Declared(),
		maxDepth: maxDepth,
		res:      res,
	}
}

func (c *logicChecker) run() {
	ordinal := 0
	content.Walk(&c.doc.Content, func(node content.Node) {
		content.MatchNode(node,
			func(*content.InjectorNode) {},
			func(n *content.ConditionalNode) {
				c.checkConditional(n, fmt.Sprintf("content.conditional[%d].attrs", ordinal))
				ordinal++
			},
			func(*content.ContentNode) {},
		)
	})
}

func (c *logicChecker) checkConditional(n *content.ConditionalNode, path string) {
	if n.Attrs.Conditions == nil {
		c.res.addError(CodeMissingConditions, path+".conditions", "conditional has no conditions")
	} else {
		root := n.Attrs.Conditions
		if root.Type != "" && root.Type != content.LogicTypeGroup {
			c.res.addError(CodeInvalidLogicItem, path+".conditions.type",
				fmt.Sprintf("conditions must be a group, got %q", root.Type))
		} else {
			c.checkGroup(root, 0, path+".conditions")
		}
	}

	if n.Attrs.Expression != "" {
		c.checkExpression(n.Attrs.Expression, path+".expression")
	}
}

// checkExpression compiles with untyped variables, so only syntax and names
// are checked. Values are unknown until render time.
func (c *logicChecker) checkExpression(src, path string) {
	names := &identifiers{bound: make(map[string]struct{})}
	if _, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.Patch(names)); err != nil {
		c.res.addWarning(CodeExpressionCompile, path, fmt.Sprintf("expression does not compile: %v", err))
		return
	}

	reported := make(map[string]struct{})
	for _, name := range names.used {
		if strings.HasPrefix(name, "$") {
			continue
		}
		if _, ok := c.declared[name]; ok {
			continue
		}
		if _, ok := names.bound[name]; ok {
			continue
		}
		if _, ok := reported[name]; ok {
			continue
		}
		reported[name] = struct{}{}
		c.res.addWarning(CodeExpressionCompile, path, fmt.Sprintf("expression reads undeclared variable %q", name))
	}
}

// identifiers records the names an expression reads and those it binds with let.
type identifiers struct {
	used  []string
	bound map[string]struct{}
}

func (i *identifiers) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		i.used = append(i.used, n.Value)
	case *ast.VariableDeclaratorNode:
		i.bound[n.Name] = struct{}{}
	}
}

func (c *logicChecker) checkGroup(group *content.LogicGroup, depth int, path string) {
	if depth > c.maxDepth {
		c.res.addWarning(CodeMaxNestingExceeded, path,
			fmt.Sprintf("group nesting depth %d exceeds maximum %d", depth, c.maxDepth))
		return
	}

	if group.Logic != content.LogicAnd && group.Logic != content.LogicOr {
		c.res.addError(CodeInvalidLogicType, path+".logic",
			fmt.Sprintf("logic must be AND or OR, got %q", group.Logic))
	}

	if len(group.Children) == 0 {
		c.res.addError(CodeEmptyGroup, path+".children", "group must have at least one child")
		return
	}

	for i, child := range group.Children {
		childPath := fmt.Sprintf("%s.children[%d]", path, i)
		content.MatchLogic(child,
			func(g *content.LogicGroup) { c.checkGroup(g, depth+1, childPath) },
			func(r *content.LogicRule) { c.checkRule(r, childPath) },
			func(item *content.InvalidLogicItem) {
				c.res.addError(CodeInvalidLogicItem, childPath+".type",
					fmt.Sprintf("logic item type must be group or rule, got %q", item.Type))
			},
		)
	}
}

func (c *logicChecker) checkRule(rule *content.LogicRule, path string) {
	if _, ok := c.declared[rule.VariableID]; !ok {
		c.res.addError(CodeUndeclaredVariable, path+".variableId",
			fmt.Sprintf("variable %q is not declared in variableIds", rule.VariableID))
	}

	switch {
	case content.IsNoValueOperator(rule.Operator):
		if rule.HasValue() {
			c.res.addWarning(CodeUnexpectedRuleValue, path+".value",
				fmt.Sprintf("operator %q ignores its value", rule.Operator))
		}
	case content.IsValueOperator(rule.Operator):
		if !rule.HasValue() {
			c.res.addError(CodeMissingRuleValue, path+".value",
				fmt.Sprintf("operator %q requires a value", rule.Operator))
			return
		}
		c.checkRuleValue(rule.Value, path+".value")
	default:
		c.res.addError(CodeInvalidOperator, path+".operator",
			fmt.Sprintf("unknown operator %q", rule.Operator))
	}
}

func (c *logicChecker) checkRuleValue(value *content.RuleValue, path string) {
	switch value.Mode {
	case content.ValueModeText:
	case content.ValueModeVariable:
		if _, ok := c.declared[value.Value]; !ok {
			c.res.addError(CodeUndeclaredValueVariable, path+".value",
				fmt.Sprintf("variable %q is not declared in variableIds", value.Value))
		}
	default:
		c.res.addError(CodeInvalidValueMode, path+".mode",
			fmt.Sprintf("value mode must be text or variable, got %q", value.Mode))
	}
}
