package diagnostic

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dunehmr/internal/domain"
)

const belt = "let a = 1;\nlet b = 2;\nopen Belt;\nlet d = 4;\nlet e = 5;\nlet f = 6;\n"

func caretRow(pad, length int) string {
	return "    | " + strings.Repeat(" ", pad) + strings.Repeat("^", length)
}

func TestRenderFrameSingleLine(t *testing.T) {
	// "Belt" on line 3 starts at offset 27
	got := RenderFrame(belt, 27, 31)
	want := strings.Join([]string{
		"  1 | let a = 1;",
		"  2 | let b = 2;",
		"  3 | open Belt;",
		caretRow(5, 4),
		"  4 | let d = 4;",
		"  5 | let e = 5;",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRenderFrameFirstCharacterHasNoLeadingContext(t *testing.T) {
	got := RenderFrame("abc\ndef\nghi\n", 0, 1)
	lines := strings.Split(got, "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "  1 | abc", lines[0])
	assert.Equal(t, caretRow(0, 1), lines[1])
	assert.NotContains(t, got, "  0 |")
	assert.NotContains(t, got, "-")
}

func TestRenderFrameLastCharacterHasNoTrailingContext(t *testing.T) {
	got := RenderFrame("abc\ndef\nghi\n", 10, 11)
	lines := strings.Split(got, "\n")
	assert.Equal(t, []string{
		"  1 | abc",
		"  2 | def",
		"  3 | ghi",
		caretRow(2, 1),
	}, lines)
}

func TestRenderFrameMultiLine(t *testing.T) {
	got := RenderFrame("ab\ncd\nef", 1, 4)
	want := strings.Join([]string{
		"  1 | ab",
		caretRow(1, 1),
		"  2 | cd",
		caretRow(0, 1),
		"  3 | ef",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRenderFrameMultiLineUnderlinesWholeMiddleLines(t *testing.T) {
	got := RenderFrame("one\ntwo\nthree\nfour", 2, 16)
	want := strings.Join([]string{
		"  1 | one",
		caretRow(2, 1),
		"  2 | two",
		caretRow(0, 3),
		"  3 | three",
		caretRow(0, 5),
		"  4 | four",
		caretRow(0, 2),
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRenderFrameEmptySpanGetsOneCaret(t *testing.T) {
	got := RenderFrame("let x = ;", 8, 8)
	assert.Equal(t, "  1 | let x = ;\n"+caretRow(8, 1), got)
}

func TestRenderFrameCaretsUseDisplayWidth(t *testing.T) {
	accented := "let s = \"h\u00e9llo\" + x;"
	assert.Equal(t, "  1 | "+accented+"\n"+caretRow(18, 1), RenderFrame(accented, 19, 20))
	assert.Equal(t, "  1 | "+accented+"\n"+caretRow(9, 5), RenderFrame(accented, 9, 15))

	wide := "\u65e5\u672c x"
	assert.Equal(t, "  1 | "+wide+"\n"+caretRow(5, 1), RenderFrame(wide, 7, 8))
	assert.Equal(t, "  1 | "+wide+"\n"+caretRow(0, 4), RenderFrame(wide, 0, 6))
}

func TestRenderFrameKeepsTabsInPadding(t *testing.T) {
	assert.Equal(t, "  1 | \tx\n    | \t^", RenderFrame("\tx", 1, 2))
}

func TestRenderFrameClampsOffsets(t *testing.T) {
	assert.Equal(t, "  1 | x\n"+caretRow(0, 1), RenderFrame("x", -5, 1000))
	assert.Empty(t, RenderFrame("", 0, 3))
}

func TestRenderFrameWidensGutter(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		b.WriteString("x\n")
	}
	src := b.String()

	got := RenderFrame(src, len(src)-2, len(src)-1)
	lines := strings.Split(got, "\n")
	assert.Equal(t, []string{
		" 998 | x",
		" 999 | x",
		"1000 | x",
		"     | ^",
	}, lines)
}

func TestRenderFrameStripsCarriageReturns(t *testing.T) {
	got := RenderFrame("a\r\nb\r\n", 3, 4)
	assert.Equal(t, "  1 | a\n  2 | b\n"+caretRow(0, 1), got)
}

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	return fs
}

func TestTranslateResolvesFrame(t *testing.T) {
	tr := NewTranslator(newFs(t, map[string]string{"/proj/src/a.re": belt}), nil)

	r := tr.Translate(domain.Diagnostic{
		ID:       4,
		File:     "/proj/src/a.re",
		Start:    &domain.Position{Line: 3, Column: 5, Offset: 27},
		End:      &domain.Position{Line: 3, Column: 9, Offset: 31},
		Message:  "Unbound module Belt",
		Severity: domain.SeverityError,
	})

	assert.Equal(t, 4, r.ID)
	assert.Equal(t, "/proj/src/a.re", r.File)
	assert.Equal(t, 3, r.Line)
	assert.Equal(t, 6, r.Column, "columns are reported 1-based")
	assert.Equal(t, domain.SeverityError, r.Severity)
	assert.Contains(t, r.Frame, "  3 | open Belt;\n"+caretRow(5, 4))
}

func TestTranslateRelativeFile(t *testing.T) {
	tr := NewTranslator(newFs(t, map[string]string{"/proj/src/b.ml": "let () = oops\n"}), nil)

	r := tr.Translate(domain.Diagnostic{
		File:      "src/b.ml",
		Directory: "/proj",
		Start:     &domain.Position{Line: 1, Column: 9, Offset: 9},
		End:       &domain.Position{Line: 1, Column: 13, Offset: 13},
		Message:   "Unbound value oops",
	})
	assert.Equal(t, "/proj/src/b.ml", r.File)
	assert.Equal(t, "  1 | let () = oops\n"+caretRow(9, 4), r.Frame)
}

func TestTranslateWithoutLocation(t *testing.T) {
	tr := NewTranslator(afero.NewMemMapFs(), nil)

	r := tr.Translate(domain.Diagnostic{ID: 2, Message: "No rule found for alias", Severity: domain.SeverityError})
	assert.Equal(t, "No rule found for alias", r.Message)
	assert.Empty(t, r.File)
	assert.Empty(t, r.Frame)
	assert.Zero(t, r.Line)
	assert.Zero(t, r.Column)
	assert.False(t, r.HasLocation())
}

func TestTranslateMissingSourceKeepsPosition(t *testing.T) {
	tr := NewTranslator(afero.NewMemMapFs(), nil)

	r := tr.Translate(domain.Diagnostic{
		File:    "/gone.re",
		Start:   &domain.Position{Line: 7, Column: 0, Offset: 80},
		Message: "x",
	})
	assert.Equal(t, 7, r.Line)
	assert.Equal(t, 1, r.Column)
	assert.Empty(t, r.Frame)
}

func TestOverlayStripsEscapes(t *testing.T) {
	r := domain.Report{
		ID:      1,
		Message: "\x1b[31mUnbound value x\x1b[0m",
		Frame:   "\x1b[33m  1 | x\x1b[0m",
		File:    "/proj/src/a.re",
		Line:    1,
		Column:  1,
	}

	p := Overlay(r, "dunehmr")
	assert.Equal(t, "Unbound value x", p.Message)
	assert.Equal(t, "  1 | x", p.Frame)
	assert.Equal(t, "/proj/src/a.re", p.ID)
	assert.Equal(t, "dunehmr", p.Plugin)
	assert.Equal(t, PluginCode, p.PluginCode)
	require.NotNil(t, p.Loc)
	assert.Equal(t, domain.ErrorLoc{File: "/proj/src/a.re", Line: 1, Column: 1}, *p.Loc)
	assert.Empty(t, p.Stack)
}

func TestOverlayWithoutLocation(t *testing.T) {
	p := Overlay(domain.Report{Message: "boom"}, "dunehmr")
	assert.Nil(t, p.Loc)
	assert.Empty(t, p.ID)
}

func TestPretty(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	r := domain.Report{
		Message: "Unbound module Belt",
		Frame:   "  3 | open Belt;\n" + caretRow(5, 4),
		File:    "/proj/src/a.re",
		Line:    3,
		Column:  6,
	}
	want := strings.Join([]string{
		"Unbound module Belt",
		"  Plugin: dunehmr",
		"  File: /proj/src/a.re:3:6",
		"    3 | open Belt;",
		"  " + caretRow(5, 4),
	}, "\n")
	assert.Equal(t, want, Pretty(r, "dunehmr"))
}

func TestPrettyMessageOnly(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	assert.Equal(t, "boom", Pretty(domain.Report{Message: "boom"}, ""))
}
