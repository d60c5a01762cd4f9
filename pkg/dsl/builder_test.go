package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	// 1. Build the flow set using the DSL
	b := New()

	b.Flow("enquiry").
		Describe("Demo enquiry line").
		Global("*", "Main menu", "start", "main menu").
		State("start").
		Prompt("Press 1 for train status.").
		Option("1", "Train status", "ask_train", "train status", "running status").
		Requires("train_number").
		State("ask_train").
		Prompt("Which train?").
		Capture("train_number", "report").
		Pattern(`^[0-9]{5}$`, "Give the 5-digit number.").
		SkipWhenCollected().
		State("report").
		Response("train_status").
		Option("1", "Another train", "ask_train", "another").
		Clears("train_number").
		Option("2", "End call", "end", "bye").
		State("agent_handoff").
		Prompt("Transferring.").
		Option("1", "Back", "flow:enquiry/start").
		Sets("transferred", "no")

	// 2. Compile to Loader
	loader, err := b.Build()
	require.NoError(t, err)

	flows, err := loader.LoadFlows()
	require.NoError(t, err)
	require.Len(t, flows, 1)

	// 3. Verify specific states
	f := flows[0]
	assert.Equal(t, "enquiry", f.Name)
	assert.Equal(t, "start", f.InitialState, "the first state is the initial one")
	assert.Equal(t, "Demo enquiry line", f.Description)
	require.Len(t, f.GlobalOptions, 1)
	assert.Equal(t, domain.StateTarget("start"), f.GlobalOptions[0].Next)

	start, ok := f.State("start")
	require.True(t, ok)
	require.Len(t, start.Options, 1)
	assert.Equal(t, []string{"train status", "running status"}, start.Options[0].Synonyms)
	assert.Equal(t, []string{"train_number"}, start.Options[0].RequiredFields)

	ask, _ := f.State("ask_train")
	require.NotNil(t, ask.FreeText)
	assert.Equal(t, "train_number", ask.FreeText.Field)
	assert.Equal(t, domain.StateTarget("report"), ask.FreeText.Next)
	assert.Equal(t, `^[0-9]{5}$`, ask.FreeText.Pattern)
	assert.True(t, ask.SkipWhenCollected)

	report, _ := f.State("report")
	assert.Equal(t, "train_status", report.Response)
	require.Len(t, report.Options, 2)
	assert.Equal(t, []string{"train_number"}, report.Options[0].Clears)
	assert.Equal(t, domain.End, report.Options[1].Next)

	handoff, _ := f.State("agent_handoff")
	assert.Equal(t, domain.Target{Kind: domain.TargetFlow, Flow: "enquiry", State: "start"}, handoff.Options[0].Next)
	assert.Equal(t, map[string]string{"transferred": "no"}, handoff.Options[0].Sets)
}

func TestBuilder_Terminal(t *testing.T) {
	b := New()
	s := b.Flow("f").State("done").Option("1", "x", "done").Terminal().Build()
	assert.True(t, s.Terminal)
	assert.Empty(t, s.Options)
}

func TestBuilder_ReuseFlowAndState(t *testing.T) {
	b := New()
	b.Flow("f").State("a").Prompt("first")
	b.Flow("f").State("a").Option("1", "Go", "b")
	b.Flow("f").Initial("b").State("b").Terminal()

	flows, err := b.Flows()
	require.NoError(t, err)
	require.Len(t, flows, 1)
	a, _ := flows[0].State("a")
	assert.Equal(t, "first", a.Prompt)
	assert.Len(t, a.Options, 1)
	assert.Equal(t, "b", flows[0].InitialState)
}

func TestBuilder_Errors(t *testing.T) {
	b := New()
	b.Flow("broken").
		State("start").
		Option("1", "Bad", "flow:").
		Sets("k", "v").
		Pattern(".*", "no capture").
		Capture("x", "")

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `broken: option "1"`)
	assert.Contains(t, err.Error(), "option modifier before any option")
	assert.Contains(t, err.Error(), "pattern without capture")
	assert.Contains(t, err.Error(), "capture: empty target")
}

func TestBuilder_SortedFlows(t *testing.T) {
	b := New()
	b.Flow("zeta").State("s").Terminal()
	b.Flow("alpha").State("s").Terminal()

	flows, err := b.Flows()
	require.NoError(t, err)
	assert.Equal(t, "alpha", flows[0].Name)
	assert.Equal(t, "zeta", flows[1].Name)
}
