package navigator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/formflow/internal/evalctx"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/instance"
	"github.com/vk/formflow/internal/schema"
	"github.com/vk/formflow/internal/state"
	"github.com/zclconf/go-cty/cty"
)

func fixtureDef() *schema.FormDefinition {
	return &schema.FormDefinition{
		Slug: "signup",
		Pages: []*schema.Page{
			{
				ID: "identity",
				Fields: []*schema.Field{
					{ID: "name", Label: "Name", Varname: "name", Kind: schema.KindString, Required: true},
					{ID: "nickname", Label: "Nickname", Varname: "nickname", Kind: schema.KindString, Required: true, Condition: `has_nickname`},
				},
				PostConditions: []*schema.PostCondition{
					{Condition: `name != "root"`, ErrorMessage: `The name ${name} is reserved.`},
				},
			},
			{
				ID:        "company",
				Condition: `is_company`,
				Fields: []*schema.Field{
					{ID: "vat", Label: "VAT number", Varname: "vat", Kind: schema.KindString, Required: true},
				},
			},
			{
				ID: "confirm",
				Fields: []*schema.Field{
					{ID: "done", Label: "Done", Varname: "done", Kind: schema.KindBool},
				},
			},
		},
	}
}

func TestForward(t *testing.T) {
	nav := New(exprport.NewHCL())
	def := fixtureDef()
	ctx := context.Background()

	t.Run("missing required field blocks", func(t *testing.T) {
		states := state.NewSet()
		states.Get(instance.Top("name")) // visible, no value
		hidden := states.Get(instance.Top("nickname"))
		hidden.Visible = false

		out := nav.Forward(ctx, def, 0, states, evalctx.New(), nil)
		assert.False(t, out.Advance)
		require.Contains(t, out.FieldErrors, "name")
		assert.NotContains(t, out.FieldErrors, "nickname", "hidden required fields never block")
	})

	t.Run("post-condition failure renders its message", func(t *testing.T) {
		states := state.NewSet()
		states.Get(instance.Top("name")).Value = cty.StringVal("root")
		states.Get(instance.Top("nickname")).Visible = false

		scope := evalctx.New()
		scope.Set("name", cty.StringVal("root"))

		out := nav.Forward(ctx, def, 0, states, scope, nil)
		assert.False(t, out.Advance)
		assert.Empty(t, out.FieldErrors)
		require.Len(t, out.PageErrors, 1)
		assert.Equal(t, "The name root is reserved.", out.PageErrors[0])
	})

	t.Run("filled page advances", func(t *testing.T) {
		states := state.NewSet()
		states.Get(instance.Top("name")).Value = cty.StringVal("Ada")
		states.Get(instance.Top("nickname")).Visible = false

		scope := evalctx.New()
		scope.Set("name", cty.StringVal("Ada"))

		out := nav.Forward(ctx, def, 0, states, scope, nil)
		assert.True(t, out.Advance)
		assert.Empty(t, out.FieldErrors)
		assert.Empty(t, out.PageErrors)
	})

	t.Run("empty string does not satisfy required", func(t *testing.T) {
		states := state.NewSet()
		states.Get(instance.Top("name")).Value = cty.StringVal("")
		states.Get(instance.Top("nickname")).Visible = false

		out := nav.Forward(ctx, def, 0, states, evalctx.New(), nil)
		assert.False(t, out.Advance)
		assert.Contains(t, out.FieldErrors, "name")
	})
}

func TestForward_BlockRows(t *testing.T) {
	nav := New(exprport.NewHCL())
	def := &schema.FormDefinition{
		Pages: []*schema.Page{{
			ID: "people",
			Fields: []*schema.Field{
				{ID: "contacts", Kind: schema.KindBlock, BlockRef: "contact"},
			},
		}},
		Blocks: map[string]*schema.Block{
			"contact": {Slug: "contact", Fields: []*schema.Field{
				{ID: "email", Label: "Email", Varname: "email", Kind: schema.KindEmail, Required: true},
			}},
		},
	}

	states := state.NewSet()
	states.Get(instance.InRow("contacts", "email", 0)).Value = cty.StringVal("a@b.c")
	states.Get(instance.InRow("contacts", "email", 1)) // second row left empty

	out := nav.Forward(context.Background(), def, 0, states, evalctx.New(), map[string]int{"contacts": 2})
	assert.False(t, out.Advance)
	assert.NotContains(t, out.FieldErrors, "contacts-email-0")
	assert.Contains(t, out.FieldErrors, "contacts-email-1")
}

func TestPageVisibilityNavigation(t *testing.T) {
	nav := New(exprport.NewHCL())
	def := fixtureDef()
	ctx := context.Background()

	scope := evalctx.New()
	scope.Set("is_company", cty.False)

	assert.Equal(t, 2, nav.NextVisible(ctx, def, 0, scope), "conditional page is skipped")
	assert.Equal(t, 0, nav.Backward(ctx, def, 2, scope))

	scope.Set("is_company", cty.True)
	assert.Equal(t, 1, nav.NextVisible(ctx, def, 0, scope))
	assert.Equal(t, 1, nav.Backward(ctx, def, 2, scope))
	assert.Equal(t, -1, nav.NextVisible(ctx, def, 2, scope), "last page has no successor")
}

func TestSubmit(t *testing.T) {
	nav := New(exprport.NewHCL())
	def := fixtureDef()
	ctx := context.Background()

	scope := evalctx.New()
	scope.Set("name", cty.StringVal("Ada"))
	scope.Set("is_company", cty.True)

	states := state.NewSet()
	states.Get(instance.Top("name")).Value = cty.StringVal("Ada")
	states.Get(instance.Top("nickname")).Visible = false

	first := nav.Submit(ctx, def, states, scope, nil)
	assert.False(t, first.Advance, "vat page is visible and unfilled")
	assert.Contains(t, first.FieldErrors, "vat")

	states.Get(instance.Top("vat")).Value = cty.StringVal("FR123")
	ok := nav.Submit(ctx, def, states, scope, nil)
	assert.True(t, ok.Advance)

	again := nav.Submit(ctx, def, states, scope, nil)
	assert.Equal(t, ok, again, "re-validation is idempotent")
}
