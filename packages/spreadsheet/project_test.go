package spreadsheet

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// ProjectTestCase chains edits and assertions against one project. The
// first failed edit stops the chain unless it is claimed by ExpectAppError.
type ProjectTestCase struct {
	t       *testing.T
	name    string
	project *Project
	err     error
}

func NewProjectTestCase(t *testing.T, name string, opts ...Option) *ProjectTestCase {
	return &ProjectTestCase{t: t, name: name, project: New(opts...)}
}

func (tc *ProjectTestCase) Do(fn func(p *Project) error) *ProjectTestCase {
	tc.t.Helper()
	if tc.err != nil {
		return tc
	}
	tc.err = fn(tc.project)
	return tc
}

func (tc *ProjectTestCase) Set(cell, input string) *ProjectTestCase {
	tc.t.Helper()
	return tc.Do(func(p *Project) error { return p.SetInput(cell, input) })
}

func (tc *ProjectTestCase) Clear(target string) *ProjectTestCase {
	tc.t.Helper()
	return tc.Do(func(p *Project) error { return p.Clear(target) })
}

func (tc *ProjectTestCase) Undo() *ProjectTestCase {
	tc.t.Helper()
	return tc.Do(func(p *Project) error {
		ok, err := p.Undo()
		if err == nil && !ok {
			tc.t.Errorf("%s: nothing to undo", tc.name)
		}
		return err
	})
}

func (tc *ProjectTestCase) Redo() *ProjectTestCase {
	tc.t.Helper()
	return tc.Do(func(p *Project) error {
		ok, err := p.Redo()
		if err == nil && !ok {
			tc.t.Errorf("%s: nothing to redo", tc.name)
		}
		return err
	})
}

// ExpectAppError claims the pending error, which must carry code.
func (tc *ProjectTestCase) ExpectAppError(code AppErrorCode) *ProjectTestCase {
	tc.t.Helper()
	require.Error(tc.t, tc.err, tc.name)
	assert.Equal(tc.t, code, ErrorCode(tc.err), "%s: %v", tc.name, tc.err)
	tc.err = nil
	return tc
}

func (tc *ProjectTestCase) ok() bool {
	tc.t.Helper()
	return assert.NoError(tc.t, tc.err, tc.name)
}

func (tc *ProjectTestCase) AssertOutput(cell string, want formula.Primitive) *ProjectTestCase {
	tc.t.Helper()
	if !tc.ok() {
		return tc
	}
	got, err := tc.project.Output(cell)
	require.NoError(tc.t, err)
	if w, isNum := want.(float64); isNum {
		if g, ok := got.(float64); assert.True(tc.t, ok, "%s: %s = %v (%T)", tc.name, cell, got, got) {
			assert.InDelta(tc.t, w, g, 1e-9, "%s: %s", tc.name, cell)
		}
		return tc
	}
	assert.Equal(tc.t, want, got, "%s: %s", tc.name, cell)
	return tc
}

func (tc *ProjectTestCase) AssertErr(cell string, code formula.ErrorCode) *ProjectTestCase {
	tc.t.Helper()
	if !tc.ok() {
		return tc
	}
	got, err := tc.project.Output(cell)
	require.NoError(tc.t, err)
	if e, ok := got.(*formula.Error); assert.True(tc.t, ok, "%s: %s = %v, want an error", tc.name, cell, got) {
		assert.Equal(tc.t, formula.ErrorMapper[code], e.Marker(), "%s: %s", tc.name, cell)
	}
	return tc
}

func (tc *ProjectTestCase) AssertDisplay(cell, want string) *ProjectTestCase {
	tc.t.Helper()
	if !tc.ok() {
		return tc
	}
	got, err := tc.project.Display(cell)
	require.NoError(tc.t, err)
	assert.Equal(tc.t, want, got, "%s: %s", tc.name, cell)
	return tc
}

func (tc *ProjectTestCase) AssertInput(cell, want string) *ProjectTestCase {
	tc.t.Helper()
	if !tc.ok() {
		return tc
	}
	got, err := tc.project.Input(cell)
	require.NoError(tc.t, err)
	assert.Equal(tc.t, want, got, "%s: %s", tc.name, cell)
	return tc
}

func (tc *ProjectTestCase) AssertReadOnly(cell string, want bool) *ProjectTestCase {
	tc.t.Helper()
	if !tc.ok() {
		return tc
	}
	c, err := tc.project.Cell(cell)
	require.NoError(tc.t, err)
	assert.Equal(tc.t, want, c.ReadOnly(), "%s: %s", tc.name, cell)
	return tc
}

func (tc *ProjectTestCase) End() {
	tc.t.Helper()
	tc.ok()
}

func TestInputClassification(t *testing.T) {
	NewProjectTestCase(t, "literals").
		Set("A1", "12").
		Set("A2", "'12").
		Set("A3", "hello").
		Set("A4", "2024-03-05").
		Set("A5", " 1.5e3 ").
		Set("A6", "0x1F").
		AssertOutput("A1", 12.0).
		AssertOutput("A2", "12").
		AssertOutput("A3", "hello").
		AssertDisplay("A4", "2024-03-05").
		AssertOutput("A5", 1500.0).
		AssertOutput("A6", "0x1F").
		AssertOutput("B1", 0.0).
		AssertDisplay("B1", "").
		End()

	p := New()
	require.NoError(t, p.SetInput("A1", "2024-03-05T12:00:00"))
	c, err := p.Cell("A1")
	require.NoError(t, err)
	assert.Equal(t, ValueTypeDate, c.ValueType())
	assert.Equal(t, "2024-03-05T12:00:00", mustDisplay(t, p, "A1"))
}

func mustDisplay(t *testing.T, p *Project, cell string) string {
	t.Helper()
	d, err := p.Display(cell)
	require.NoError(t, err)
	return d
}

func mustInput(t *testing.T, p *Project, cell string) string {
	t.Helper()
	in, err := p.Input(cell)
	require.NoError(t, err)
	return in
}

func TestFormulas(t *testing.T) {
	NewProjectTestCase(t, "references").
		Set("A1", "2").
		Set("A2", "3").
		Set("B1", "=A1*A2").
		Set("B2", "=SUM(A1:A2)+B1").
		Set("B3", "=SUM(A:A)").
		Set("B4", "=C9").
		Set("B5", "=C9+1").
		AssertOutput("B1", 6.0).
		AssertOutput("B2", 11.0).
		AssertOutput("B3", 5.0).
		AssertOutput("B4", 0.0).
		AssertOutput("B5", 1.0).
		Set("A1", "4").
		AssertOutput("B1", 12.0).
		AssertOutput("B2", 19.0).
		End()

	NewProjectTestCase(t, "errors").
		Set("A1", "=1/0").
		Set("A2", "=SUM(").
		Set("A3", "=nothing+1").
		Set("A4", "=ZZZ99999").
		AssertErr("A1", formula.ErrorCodeDiv0).
		AssertDisplay("A1", "#DIV/0!").
		AssertErr("A2", formula.ErrorCodeOther).
		AssertErr("A3", formula.ErrorCodeName).
		AssertErr("A4", formula.ErrorCodeRef).
		End()
}

func TestCircularReferences(t *testing.T) {
	NewProjectTestCase(t, "cycle").
		Set("A1", "=B1").
		Set("B1", "=A1").
		Set("C1", "=C1+1").
		AssertErr("A1", formula.ErrorCodeCirc).
		AssertErr("B1", formula.ErrorCodeCirc).
		AssertErr("C1", formula.ErrorCodeCirc).
		AssertDisplay("C1", "#CIRC!").
		Set("B1", "5").
		AssertOutput("A1", 5.0).
		End()

	NewProjectTestCase(t, "range containing itself").
		Set("A1", "1").
		Set("A3", "=SUM(A1:A3)").
		AssertErr("A3", formula.ErrorCodeCirc).
		End()
}

func TestDeclaredTypes(t *testing.T) {
	NewProjectTestCase(t, "number cell").
		Do(func(p *Project) error { return p.SetCellType("A1", CellTypeNumber) }).
		Set("A1", "abc").
		AssertErr("A1", formula.ErrorCodeValue).
		Set("A1", "42").
		AssertOutput("A1", 42.0).
		End()

	NewProjectTestCase(t, "string cell").
		Do(func(p *Project) error { return p.SetCellType("A1", CellTypeString) }).
		Set("A1", "12").
		AssertOutput("A1", "12").
		Set("A1", "=1+1").
		AssertErr("A1", formula.ErrorCodeValue).
		End()

	NewProjectTestCase(t, "date cell").
		Do(func(p *Project) error { return p.SetCellType("A1", CellTypeDate) }).
		Set("A1", "=45356").
		AssertDisplay("A1", "2024-03-05").
		End()
}

func TestFormatters(t *testing.T) {
	NewProjectTestCase(t, "number formatter").
		Set("A1", "1234.5").
		Do(func(p *Project) error { return p.SetNumberFormatter("A1", "=LAMBDA(x, FIXED(x, 2))") }).
		AssertDisplay("A1", "1,234.50").
		AssertOutput("A1", 1234.5).
		Set("A1", "hello").
		AssertDisplay("A1", "hello").
		End()

	NewProjectTestCase(t, "date formatter").
		Set("A1", "2024-03-05").
		Do(func(p *Project) error { return p.SetDateFormatter("A1", `LAMBDA(d, "day")`) }).
		AssertDisplay("A1", "day").
		End()

	NewProjectTestCase(t, "broken formatter").
		Set("A1", "1").
		Do(func(p *Project) error { return p.SetNumberFormatter("A1", "LAMBDA(") }).
		AssertDisplay("A1", "#ERROR!").
		End()

	p := New()
	for _, cell := range []string{"A1", "A2", "A3"} {
		require.NoError(t, p.SetInput(cell, "1"))
		require.NoError(t, p.SetNumberFormatter(cell, "LAMBDA(x, FIXED(x, 1))"))
	}
	assert.Equal(t, 1, p.formatters.count(), "one program shared by three cells")
	require.NoError(t, p.Clear("A1:A3"))
	assert.Equal(t, 0, p.formatters.count())
}

func TestSpill(t *testing.T) {
	NewProjectTestCase(t, "spill and release").
		Set("A1", "=[1,2,3]").
		AssertOutput("A1", 1.0).
		AssertOutput("A2", 2.0).
		AssertOutput("A3", 3.0).
		AssertReadOnly("A2", true).
		Set("B1", "=SUM(A1:A3)").
		AssertOutput("B1", 6.0).
		Set("A2", "9").
		ExpectAppError(FailedPrecondition).
		Clear("A1").
		AssertReadOnly("A2", false).
		AssertDisplay("A2", "").
		AssertOutput("B1", 0.0).
		End()

	NewProjectTestCase(t, "no spill form").
		Set("A1", ":=[1,2,3]").
		AssertReadOnly("A2", false).
		AssertDisplay("A1", "[1, 2, 3]").
		End()

	NewProjectTestCase(t, "resize").
		Set("C1", "3").
		Set("A1", "=SEQUENCE(C1)").
		AssertOutput("A3", 3.0).
		Set("C1", "2").
		AssertOutput("A2", 2.0).
		AssertReadOnly("A3", false).
		AssertDisplay("A3", "").
		End()

	NewProjectTestCase(t, "out of bounds").
		Set("A99", "=[1,2,3]").
		AssertErr("A99", formula.ErrorCodeSpill).
		End()
}

func TestSpillConflictRetries(t *testing.T) {
	p := New()
	require.NoError(t, p.SetInput("A2", "x"))
	require.NoError(t, p.SetInput("A1", "=[1,2,3]"))
	out, err := p.Output("A1")
	require.NoError(t, err)
	assert.True(t, formula.IsError(out, formula.ErrorCodeSpill))
	assert.Equal(t, "#SPILL!", mustDisplay(t, p, "A1"))

	require.NoError(t, p.Clear("A2"))
	assert.Equal(t, "1", mustDisplay(t, p, "A1"))
	assert.Equal(t, "2", mustDisplay(t, p, "A2"))
	assert.Equal(t, "3", mustDisplay(t, p, "A3"))
}

func TestSpillBlocksStructuralSplit(t *testing.T) {
	NewProjectTestCase(t, "split").
		Set("B2", "=[1,2,3]").
		Do(func(p *Project) error { return p.InsertRowsBefore("", 2, 1) }).
		ExpectAppError(FailedPrecondition).
		Do(func(p *Project) error { return p.DeleteRows("", 2, 1) }).
		ExpectAppError(FailedPrecondition).
		Do(func(p *Project) error { return p.InsertRowsBefore("", 1, 1) }).
		AssertOutput("B3", 1.0).
		AssertOutput("B5", 3.0).
		AssertReadOnly("B4", true).
		End()
}

func TestDeleteRowRewritesFormulas(t *testing.T) {
	NewProjectTestCase(t, "delete row 1").
		Set("B1", "12").
		Set("B2", "13").
		Set("B3", "=SUM(B1:B2)").
		AssertOutput("B3", 25.0).
		Do(func(p *Project) error { return p.DeleteRows("", 0, 1) }).
		AssertInput("B1", "13").
		AssertInput("B2", "=SUM(B1:B1)").
		AssertOutput("B2", 13.0).
		Undo().
		AssertInput("B1", "12").
		AssertInput("B3", "=SUM(B1:B2)").
		AssertOutput("B3", 25.0).
		End()

	NewProjectTestCase(t, "deleted reference").
		Set("A1", "1").
		Set("B1", "=A1+1").
		Do(func(p *Project) error { return p.DeleteCols("", 0, 1) }).
		AssertInput("A1", "=#REF!+1").
		AssertErr("A1", formula.ErrorCodeRef).
		End()

	NewProjectTestCase(t, "cannot delete everything").
		Do(func(p *Project) error { return p.DeleteRows("", 0, p.CurrentGrid().Rows()) }).
		ExpectAppError(FailedPrecondition).
		Do(func(p *Project) error { return p.DeleteRows("", 99, 2) }).
		ExpectAppError(OutOfRange).
		End()
}

func TestInsertShiftsReferences(t *testing.T) {
	NewProjectTestCase(t, "insert").
		Set("A1", "1").
		Set("A2", "=A1+1").
		Set("B1", "=$A$2*10").
		Do(func(p *Project) error { return p.InsertRowsBefore("", 0, 2) }).
		AssertInput("A4", "=A3+1").
		AssertInput("B3", "=$A$4*10").
		AssertOutput("A4", 2.0).
		AssertOutput("B3", 20.0).
		Do(func(p *Project) error { return p.InsertColsAfter("", 0, 1) }).
		AssertInput("A4", "=A3+1").
		AssertInput("C3", "=$A$4*10").
		Undo().
		Undo().
		AssertInput("A2", "=A1+1").
		AssertInput("B1", "=$A$2*10").
		End()

	p := New()
	rows := p.CurrentGrid().Rows()
	require.NoError(t, p.InsertRowsAfter("", rows-1, 3))
	assert.Equal(t, rows+3, p.CurrentGrid().Rows())
}

func TestCopyAndMove(t *testing.T) {
	NewProjectTestCase(t, "copy").
		Set("B2", "=C3").
		Set("M13", "7").
		Do(func(p *Project) error { return p.CopyRange("B2", "L12") }).
		AssertInput("L12", "=M13").
		AssertOutput("L12", 7.0).
		AssertInput("B2", "=C3").
		End()

	NewProjectTestCase(t, "copy off the grid").
		Set("B2", "=A1").
		Do(func(p *Project) error { return p.CopyRange("B2", "A2") }).
		AssertInput("A2", "=#REF!").
		End()

	NewProjectTestCase(t, "move").
		Set("A1", "5").
		Set("B1", "=A1*2").
		Set("A2", "=A1+1").
		Do(func(p *Project) error { return p.MoveRange("A1", "C3") }).
		AssertInput("C3", "5").
		AssertInput("A1", "").
		AssertInput("B1", "=C3*2").
		AssertOutput("B1", 10.0).
		AssertInput("A2", "=C3+1").
		Do(func(p *Project) error { return p.MoveRange("A2", "D4") }).
		AssertInput("D4", "=C3+1").
		AssertOutput("D4", 6.0).
		Undo().
		Undo().
		AssertInput("A1", "5").
		AssertInput("B1", "=A1*2").
		AssertInput("A2", "=A1+1").
		End()

	NewProjectTestCase(t, "move across grids").
		Do(func(p *Project) error { _, err := p.AddGrid("Data"); return err }).
		Set("A1", "3").
		Set("A2", "=A1*2").
		Do(func(p *Project) error { return p.MoveRange("A2", "Data!B2") }).
		AssertInput("Data!B2", "=Sheet1!A1*2").
		AssertOutput("Data!B2", 6.0).
		End()

	NewProjectTestCase(t, "does not fit").
		Set("A1", "1").
		Do(func(p *Project) error { return p.CopyRange("A1:B2", "Z100") }).
		ExpectAppError(OutOfRange).
		End()

	p := New()
	assert.Equal(t, "=M13+$A$1", p.TranslateFormula("=C3+$A$1", 10, 10, ""))
	assert.Equal(t, "plain", p.TranslateFormula("plain", 1, 1, ""))
}

func TestGrids(t *testing.T) {
	NewProjectTestCase(t, "rename and remove").
		Do(func(p *Project) error { _, err := p.AddGrid("Data"); return err }).
		Set("Data!A1", "5").
		Set("A1", "=Data!A1*2").
		AssertOutput("A1", 10.0).
		Do(func(p *Project) error { return p.RenameGrid("Data", "Inputs") }).
		AssertInput("A1", "=Inputs!A1*2").
		AssertOutput("A1", 10.0).
		Do(func(p *Project) error { return p.RemoveGrid("Inputs") }).
		AssertInput("A1", "=#REF!*2").
		AssertErr("A1", formula.ErrorCodeRef).
		Undo().
		AssertInput("A1", "=Inputs!A1*2").
		AssertOutput("A1", 10.0).
		Do(func(p *Project) error { return p.RemoveGrid("Sheet1") }).
		AssertOutput("Inputs!A1", 5.0).
		Do(func(p *Project) error { return p.RemoveGrid("Inputs") }).
		ExpectAppError(FailedPrecondition).
		End()

	NewProjectTestCase(t, "grid added later").
		Set("A1", "=Later!A1+1").
		AssertErr("A1", formula.ErrorCodeRef).
		Do(func(p *Project) error { _, err := p.AddGrid("Later"); return err }).
		AssertOutput("A1", 1.0).
		Do(func(p *Project) error { _, err := p.AddGrid("Later"); return err }).
		ExpectAppError(AlreadyExists).
		Do(func(p *Project) error { return p.RenameGrid("Nope", "X") }).
		ExpectAppError(NotFound).
		End()
}

func TestAliases(t *testing.T) {
	NewProjectTestCase(t, "defined later").
		Set("C1", "=rate*2").
		AssertErr("C1", formula.ErrorCodeName).
		Set("A1", "3").
		Do(func(p *Project) error { return p.SetAlias("rate", "A1") }).
		AssertOutput("C1", 6.0).
		Do(func(p *Project) error { return p.RemoveAlias("rate") }).
		AssertErr("C1", formula.ErrorCodeName).
		End()

	NewProjectTestCase(t, "follows structure").
		Set("B1", "1").
		Set("B2", "2").
		Set("C5", "=SUM(total)").
		Do(func(p *Project) error { return p.SetAlias("total", "B1:B2") }).
		AssertOutput("C5", 3.0).
		Do(func(p *Project) error { return p.InsertRowsBefore("", 0, 1) }).
		AssertOutput("C6", 3.0).
		Do(func(p *Project) error { return p.RenameAlias("total", "amount") }).
		AssertInput("C6", "=SUM(amount)").
		Do(func(p *Project) error { return p.DeleteRows("", 1, 2) }).
		AssertInput("C4", `=SUM(DELETED("amount"))`).
		AssertErr("C4", formula.ErrorCodeRef).
		End()

	p := New()
	for _, bad := range []string{"A1", "SUM", "TRUE", "", "has space"} {
		err := p.SetAlias(bad, "A1")
		assert.Equal(t, InvalidArgument, ErrorCode(err), bad)
	}
	require.NoError(t, p.SetAlias("price", "B2"))
	assert.Equal(t, map[string]string{"price": "Sheet1!B2"}, p.Aliases())
}

func TestBatch(t *testing.T) {
	p := New()
	require.NoError(t, p.Batch(func() error {
		if err := p.SetInput("A1", "1"); err != nil {
			return err
		}
		return p.SetInput("A2", "=A1+1")
	}))
	assert.Equal(t, "2", mustDisplay(t, p, "A2"))
	ok, err := p.Undo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", mustDisplay(t, p, "A1"))
	assert.False(t, p.CanUndo(), "one batch is one step")

	err = p.Batch(func() error {
		require.NoError(t, p.SetInput("A1", "5"))
		require.NoError(t, p.InsertRowsBefore("", 0, 1))
		return p.SetInput("B1", "=[1,2]")
	})
	require.NoError(t, err)
	assert.Equal(t, "5", mustDisplay(t, p, "A2"))
	assert.Equal(t, "2", mustDisplay(t, p, "B2"))

	err = p.Batch(func() error {
		require.NoError(t, p.SetInput("C1", "1"))
		return p.SetInput("B2", "9")
	})
	assert.Equal(t, FailedPrecondition, ErrorCode(err))
	assert.ErrorIs(t, err, ErrReadonlyCell)
	assert.Equal(t, "", mustDisplay(t, p, "C1"), "failed batch is rolled back")

	err = p.Batch(func() error {
		_, err := p.Undo()
		return err
	})
	assert.Equal(t, FailedPrecondition, ErrorCode(err))
}

func TestSubscribe(t *testing.T) {
	p := New()
	var events []Event
	unsubscribe := p.Subscribe(func(e Event) { events = append(events, e) })
	require.NoError(t, p.SetInput("A1", "5"))
	require.Len(t, events, 1)
	assert.Equal(t, EventAttribute, events[0].Type)
	assert.Equal(t, AttrInput, events[0].Attr)
	assert.Equal(t, "", events[0].Old)
	assert.Equal(t, "5", events[0].New)

	_, err := p.Undo()
	require.NoError(t, err)
	assert.Len(t, events, 1, "replay is not published")

	unsubscribe()
	require.NoError(t, p.SetInput("A1", "6"))
	assert.Len(t, events, 1)
}

func TestPrecedents(t *testing.T) {
	p := New()
	require.NoError(t, p.SetInput("A1", "1"))
	require.NoError(t, p.SetInput("B1", "=A1*2"))
	require.NoError(t, p.SetInput("C1", "=B1+SUM(D1:D2)"))
	got, err := p.Precedents("C1")
	require.NoError(t, err)
	want := []string{"Sheet1!A1", "Sheet1!B1", "Sheet1!D1", "Sheet1!D2"}
	var gotText []string
	for _, c := range got {
		gotText = append(gotText, c.String())
	}
	assert.Equal(t, want, gotText)

	_, err = p.Precedents("nope")
	assert.Equal(t, InvalidArgument, ErrorCode(err))
}

func TestStyleAndSizes(t *testing.T) {
	p := New()
	require.NoError(t, p.SetBold("A1:B2", true))
	require.NoError(t, p.SetFontSize("A1", 14))
	require.NoError(t, p.SetBackgroundColor("B2", "#ff0000"))
	c, err := p.Cell("B1")
	require.NoError(t, err)
	assert.True(t, c.Style().Bold)
	c, err = p.Cell("A1")
	require.NoError(t, err)
	assert.Equal(t, 14.0, c.Style().FontSize)

	require.NoError(t, p.SetRowHeight("", 3, 40))
	require.NoError(t, p.SetColWidth("", 2, 250))
	assert.Equal(t, 40.0, p.CurrentGrid().RowHeight(3))
	assert.Equal(t, 250.0, p.CurrentGrid().ColWidth(2))

	assert.Equal(t, InvalidArgument, ErrorCode(p.SetAttribute("A1", AttrBold, "yes")))
	assert.Equal(t, InvalidArgument, ErrorCode(p.SetAttribute("A1", Attr("shadow"), "x")))
	assert.Equal(t, OutOfRange, ErrorCode(p.SetRowHeight("", 1000, 1)))

	_, err = p.Undo()
	require.NoError(t, err)
	assert.Equal(t, p.cfg.Grid.ColWidth, p.CurrentGrid().ColWidth(2))
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func TestRecalculate(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)}
	p := New(WithClock(clock))
	require.NoError(t, p.SetInput("A1", "=NOW()"))
	require.NoError(t, p.SetInput("A2", "=A1+1"))
	before, err := p.Output("A2")
	require.NoError(t, err)

	clock.now = clock.now.Add(24 * time.Hour)
	p.Recalculate()
	after, err := p.Output("A2")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, after.(float64)-before.(float64), 1e-9)
}

func TestUndoRedoRestoresDocuments(t *testing.T) {
	p := New()
	initial := p.Document()
	steps := []func() error{
		func() error { return p.SetInput("A1", "10") },
		func() error { return p.SetInput("B1", "=A1*2") },
		func() error { return p.SetInput("C1", "=[1,2,3]") },
		func() error { return p.SetBold("A1:B2", true) },
		func() error { return p.SetAlias("base", "A1") },
		func() error { return p.InsertRowsBefore("", 0, 2) },
		func() error { _, err := p.AddGrid("Data"); return err },
		func() error { return p.SetInput("Data!A1", "=Sheet1!B3+base") },
		func() error { return p.RenameGrid("Sheet1", "Main") },
		func() error { return p.DeleteCols("Main", 0, 1) },
		func() error { return p.SetRowHeight("Data", 4, 60) },
		func() error { return p.MoveRange("Main!A3", "Main!E8") },
		func() error { return p.RemoveGrid("Data") },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
	}
	final := p.Document()

	for p.CanUndo() {
		_, err := p.Undo()
		require.NoError(t, err)
	}
	ignoreHistory := cmpopts.IgnoreFields(Document{}, "History")
	if diff := cmp.Diff(initial, p.Document(), ignoreHistory); diff != "" {
		t.Errorf("after undoing everything (-want +got):\n%s", diff)
	}

	for p.CanRedo() {
		_, err := p.Redo()
		require.NoError(t, err)
	}
	if diff := cmp.Diff(final, p.Document(), ignoreHistory); diff != "" {
		t.Errorf("after redoing everything (-want +got):\n%s", diff)
	}
	assert.Equal(t, "=#REF!*2", mustInput(t, p, "Main!E8"))
	assert.Equal(t, "#REF!", mustDisplay(t, p, "Main!E8"))
}

func TestDocumentRoundTrip(t *testing.T) {
	p := New(WithName("budget"))
	require.NoError(t, p.SetInput("A1", "3"))
	require.NoError(t, p.SetInput("A2", "=A1*rate"))
	require.NoError(t, p.SetInput("B1", "=SEQUENCE(2)"))
	require.NoError(t, p.SetNumberFormatter("A2", "LAMBDA(x, FIXED(x, 1))"))
	require.NoError(t, p.SetCellType("C1", CellTypeString))
	require.NoError(t, p.SetColWidth("", 3, 42))
	_, err := p.AddGrid("Rates")
	require.NoError(t, err)
	require.NoError(t, p.SetInput("Rates!A1", "1.5"))
	require.NoError(t, p.SetAlias("rate", "Rates!A1"))

	doc := p.Document()
	require.NotNil(t, doc.History)
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	q, err := FromDocument(decoded)
	require.NoError(t, err)

	if diff := cmp.Diff(doc, q.Document(), cmpopts.IgnoreFields(Document{}, "History")); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
	assert.Equal(t, "budget", q.Name())
	assert.Equal(t, "4.5", mustDisplay(t, q, "A2"))
	assert.Equal(t, "2", mustDisplay(t, q, "B2"))

	// the restored history still undoes the last edit
	_, err = q.Undo()
	require.NoError(t, err)
	assert.Equal(t, "#NAME?", mustDisplay(t, q, "A2"))
}

func TestFromDocumentRejectsBadInput(t *testing.T) {
	grid := GridDTO{Name: "Sheet1", NbrOfRows: 2, NbrOfCols: 2}
	cases := []struct {
		name string
		doc  Document
		code AppErrorCode
	}{
		{"no grids", Document{}, InvalidArgument},
		{"duplicate grid", Document{Grids: []GridDTO{grid, grid}}, InvalidArgument},
		{"bad current index", Document{Grids: []GridDTO{grid}, CurrentGridIndex: 3}, OutOfRange},
		{"cell outside grid", Document{Grids: []GridDTO{{Name: "Sheet1", NbrOfRows: 1, NbrOfCols: 1,
			Cells: map[string]CellDTO{"C9": {Input: "1"}}}}}, InvalidArgument},
		{"bad alias", Document{Grids: []GridDTO{grid}, Aliases: map[string]string{"A1": "Sheet1!B1"}}, InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromDocument(tc.doc)
			assert.Equal(t, tc.code, ErrorCode(err), "%v", err)
		})
	}
}

func TestLogging(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p := New(WithLogger(logger))
	require.NoError(t, p.SetInput("A1", "1"))
	require.NoError(t, p.InsertRowsBefore("", 0, 1))

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "settled")
	assert.Contains(t, messages, "applied transformation")
}

func TestCurrentGrid(t *testing.T) {
	p := New()
	_, err := p.AddGrid("Data")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", p.CurrentGrid().Name())

	require.NoError(t, p.SetCurrentGrid("Data"))
	require.NoError(t, p.SetInput("A1", "7"))
	assert.Equal(t, "7", mustDisplay(t, p, "Data!A1"))
	assert.Equal(t, "", mustDisplay(t, p, "Sheet1!A1"))
	assert.Equal(t, 1, p.Document().CurrentGridIndex)

	assert.Equal(t, NotFound, ErrorCode(p.SetCurrentGrid("Nope")))
}

func TestUndoRestoresSpillBlocker(t *testing.T) {
	blocked := func(tc *ProjectTestCase) *ProjectTestCase {
		return tc.
			AssertErr("A1", formula.ErrorCodeSpill).
			AssertDisplay("A1", "#SPILL!").
			AssertInput("A2", "5").
			AssertOutput("A2", 5.0).
			AssertDisplay("A2", "5").
			AssertReadOnly("A2", false).
			AssertReadOnly("A3", false).
			AssertDisplay("A3", "")
	}
	spilled := func(tc *ProjectTestCase) *ProjectTestCase {
		return tc.
			AssertOutput("A1", 1.0).
			AssertInput("A2", "").
			AssertOutput("A2", 2.0).
			AssertDisplay("A2", "2").
			AssertReadOnly("A2", true).
			AssertOutput("A3", 3.0).
			AssertReadOnly("A3", true)
	}

	tc := NewProjectTestCase(t, "blocker undo and redo").
		Set("A2", "5").
		Set("A1", "=[1,2,3]")
	tc = blocked(tc)
	tc = spilled(tc.Clear("A2"))
	tc = blocked(tc.Undo())
	tc = spilled(tc.Redo())
	tc = blocked(tc.Undo())
	tc.Undo().
		AssertInput("A1", "").
		AssertDisplay("A1", "").
		AssertOutput("A2", 5.0).
		AssertReadOnly("A2", false).
		End()
}
