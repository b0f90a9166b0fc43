package treefile

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/testutil"
	"github.com/joeycumines/reactree/internal/tree"
	"github.com/stretchr/testify/require"
)

func TestLoad_BallFetch(t *testing.T) {
	t.Parallel()

	doc, err := Load(filepath.Join("testdata", "ballfetch.yaml"))
	require.NoError(t, err)
	require.Equal(t, "ballfetch", doc.Name)
	require.Equal(t, 2.0, doc.Rate)

	var ran []string
	reg := NewRegistry().
		Action("getBall", func(*blackboard.Blackboard) (bool, error) {
			ran = append(ran, "getBall")
			return true, nil
		}).
		Action("play", func(*blackboard.Blackboard) (bool, error) {
			ran = append(ran, "play")
			return true, nil
		})

	bb := doc.NewBlackboard()
	nodes, err := doc.Build(bb, reg)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "root", nodes[0].Name())

	var names []string
	tree.Walk(func(n tree.Node) { names = append(names, n.Name()) }, nodes...)
	require.Equal(t, []string{
		"root", "ensureBall", "hasBall", "getBall", "ensureWall", "atWall", "moveToWall", "play",
	}, names)

	outcome, status, err := nodes[0].Tick()
	require.NoError(t, err)
	require.True(t, outcome)
	require.Equal(t, tree.Ready, status)
	require.Equal(t, []string{"getBall", "play"}, ran)
	require.Equal(t, map[string]any{"HAS_BALL": true, "AT_WALL": true}, bb.Snapshot())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		doc  string
		want error
	}{
		{"empty", "  \n", nil},
		{"unknown field", "tree:\n  - type: action\n    set: {a: 1}\n    colour: red\n", nil},
		{"negative rate", "rate: -1\n", nil},
		{"missing type", "tree:\n  - name: x\n", ErrInvalidNode},
		{"unknown type", "tree:\n  - type: parallel\n", ErrInvalidNode},
		{"condition without source", "tree:\n  - type: condition\n", ErrInvalidNode},
		{"condition with two sources", "tree:\n  - type: condition\n    expr: a\n    call: b\n", ErrInvalidNode},
		{"condition with set", "tree:\n  - type: condition\n    expr: a\n    set: {a: 1}\n", ErrInvalidNode},
		{"empty action", "tree:\n  - type: action\n", ErrInvalidNode},
		{"action with script and call", "tree:\n  - type: action\n    script: 'true'\n    call: x\n", ErrInvalidNode},
		{"action with children", "tree:\n  - type: action\n    call: x\n    children:\n      - type: action\n        call: y\n", ErrInvalidNode},
		{"async call action", "tree:\n  - type: action\n    call: x\n    async: true\n", ErrInvalidNode},
		{"async condition", "tree:\n  - type: condition\n    script: 'true'\n    async: true\n", ErrInvalidNode},
		{"composite with expr", "tree:\n  - type: sequence\n    expr: a\n", ErrInvalidNode},
		{"nested", "tree:\n  - type: fallback\n    children:\n      - type: sequence\n        children:\n          - type: nope\n", ErrInvalidNode},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
			if tc.want != nil {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestParse_NestedErrorPath(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("tree:\n  - type: fallback\n    children:\n      - type: condition\n      - type: nope\n"))
	require.ErrorIs(t, err, ErrInvalidNode)
	require.Contains(t, err.Error(), "tree[0]/children[0]")
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		doc  string
		want error
	}{
		{"unknown action", "tree:\n  - type: action\n    call: fly\n", ErrUnknownCall},
		{"unknown condition", "tree:\n  - type: sequence\n    children:\n      - type: condition\n        call: isHungry\n", ErrUnknownCall},
		{"bad expr", "tree:\n  - type: condition\n    expr: 'HAS_BALL =='\n", nil},
		{"bad script", "tree:\n  - type: condition\n    script: '('\n", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc, err := Parse([]byte(tc.doc))
			require.NoError(t, err)
			_, err = doc.Build(blackboard.New(nil), nil)
			require.Error(t, err)
			require.True(t, strings.HasPrefix(err.Error(), "tree[0]"), err.Error())
			if tc.want != nil {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestBuild_CallModesApplySet(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`
tree:
  - type: action
    call: kick
    set: {KICKED: true}
  - type: action
    call: walk
    set: {AT_WALL: true}
  - type: condition
    call: isReady
`))
	require.NoError(t, err)

	steps := 0
	reg := NewRegistry().
		AsyncAction("kick", tree.Go(func(context.Context, *blackboard.Blackboard) (bool, error) {
			return true, nil
		})).
		PollingAction("walk", func(*blackboard.Blackboard) (tree.Status, bool, error) {
			steps++
			if steps < 2 {
				return tree.Busy, false, nil
			}
			return tree.Ready, true, nil
		}).
		Condition("isReady", tree.Check(func(bb *blackboard.Blackboard) bool { return bb.Has("KICKED") }))

	conditions, actions := reg.Names()
	require.Equal(t, []string{"isReady"}, conditions)
	require.Equal(t, []string{"kick", "walk"}, actions)

	bb := blackboard.New(nil)
	nodes, err := doc.Build(bb, reg)
	require.NoError(t, err)
	kick, walk, ready := nodes[0], nodes[1], nodes[2]
	require.Equal(t, "kick", kick.Name())
	require.Equal(t, "isReady", ready.Name())

	_, status, _ := walk.Tick()
	require.Equal(t, tree.Busy, status)
	require.False(t, bb.Has("AT_WALL"))
	outcome, status, err := walk.Tick()
	require.NoError(t, err)
	require.True(t, outcome)
	require.Equal(t, tree.Ready, status)
	require.Equal(t, true, bb.Get("AT_WALL"))

	_, status, _ = kick.Tick()
	require.Equal(t, tree.Busy, status)
	testutil.Eventually(t, func() bool {
		_, status, _ = kick.Tick()
		return status == tree.Ready
	})
	require.Equal(t, true, bb.Get("KICKED"))

	outcome, _, err = ready.Tick()
	require.NoError(t, err)
	require.True(t, outcome)
}

func TestBuild_ScriptActionWithSet(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`
blackboard:
  battery: 10
tree:
  - type: fallback
    children:
      - type: condition
        expr: battery > 20
      - type: action
        name: charge
        script: |
          blackboard.set("battery", blackboard.get("battery") + 15);
          blackboard.get("battery") > 20
        set:
          charged: true
`))
	require.NoError(t, err)

	bb := doc.NewBlackboard()
	nodes, err := doc.Build(bb, nil)
	require.NoError(t, err)

	outcome, status, err := nodes[0].Tick()
	require.NoError(t, err)
	require.True(t, outcome)
	require.Equal(t, tree.Ready, status)
	require.EqualValues(t, 25, bb.Get("battery"))
	require.Equal(t, true, bb.Get("charged"))
}

func TestBuild_AsyncScriptAction(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`
tree:
  - type: action
    name: approach
    async: true
    script: |
      new Promise(function (resolve) {
        setTimeout(function () { resolve(true); }, 10);
      })
    set:
      AT_WALL: true
`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bb := doc.NewBlackboard()
	nodes, err := doc.Build(bb, nil, WithContext(ctx))
	require.NoError(t, err)
	approach := nodes[0]
	require.Equal(t, "approach", approach.Name())

	_, status, _ := approach.Tick()
	require.Equal(t, tree.Busy, status)
	var outcome bool
	testutil.Eventually(t, func() bool {
		outcome, status, err = approach.Tick()
		return status == tree.Ready
	})
	require.NoError(t, err)
	require.True(t, outcome)
	require.Equal(t, true, bb.Get("AT_WALL"))
}
