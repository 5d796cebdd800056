package hmr

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/vburojevic/dunehmr/internal/domain"
)

type mapGraph map[string][]string

func (g mapGraph) ModulesByFile(path string) []string { return g[path] }

type recordingSink struct {
	errors   []domain.Report
	warnings []domain.Report
}

func (s *recordingSink) Error(r domain.Report)   { s.errors = append(s.errors, r) }
func (s *recordingSink) Warning(r domain.Report) { s.warnings = append(s.warnings, r) }

func report(id int, sev domain.Severity) domain.Report {
	return domain.Report{ID: id, Message: fmt.Sprintf("diag %d", id), Severity: sev}
}

func TestBuildSuccessDrainsChangedFiles(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("%d files", n), func(t *testing.T) {
			a := NewAggregator(mapGraph{}, nil)
			for i := 0; i < n; i++ {
				a.OnSourceFileChanged(fmt.Sprintf("/proj/src/f%d.re", i))
			}

			d := a.OnBuildSuccess()
			if len(d.Files) != n {
				t.Fatalf("expected %d drained files, got %d", n, len(d.Files))
			}
			if got := a.Stats().Pending; got != 0 {
				t.Fatalf("expected no pending files after success, got %d", got)
			}
			if d := a.OnBuildSuccess(); len(d.Files) != 0 {
				t.Fatalf("second build should drain nothing, got %v", d.Files)
			}
		})
	}
}

func TestBuildSuccessHotUpdatesTrackedModules(t *testing.T) {
	graph := mapGraph{
		"/proj/src/a.re": {"/src/a.re"},
		"/proj/src/b.re": {"/src/b.re", "/src/a.re"},
	}
	a := NewAggregator(graph, nil)
	a.OnSourceFileChanged("/proj/src/b.re")
	a.OnSourceFileChanged("/proj/src/a.re")
	a.OnSourceFileChanged("/proj/src/a.re")

	if !a.Pending("/proj/src/a.re") {
		t.Fatalf("expected a.re to be pending")
	}

	d := a.OnBuildSuccess()
	if d.Kind != DecisionHotUpdate {
		t.Fatalf("expected hot update, got %s", d.Kind)
	}
	if want := []string{"/proj/src/a.re", "/proj/src/b.re"}; !reflect.DeepEqual(d.Files, want) {
		t.Fatalf("files = %v, want %v", d.Files, want)
	}
	if want := []string{"/src/a.re", "/src/b.re"}; !reflect.DeepEqual(d.Modules, want) {
		t.Fatalf("modules = %v, want %v", d.Modules, want)
	}
	if d.Build != 1 {
		t.Fatalf("expected build 1, got %d", d.Build)
	}
	if a.Pending("/proj/src/a.re") {
		t.Fatalf("a.re should be drained")
	}
}

func TestBuildSuccessUntrackedFilesDoNothing(t *testing.T) {
	a := NewAggregator(mapGraph{}, nil)
	a.OnSourceFileChanged("/proj/src/unused.re")

	d := a.OnBuildSuccess()
	if d.Kind != DecisionNone {
		t.Fatalf("expected no decision, got %s", d.Kind)
	}
}

func TestErrorBecomesCurrentAndReachesSink(t *testing.T) {
	sink := &recordingSink{}
	a := NewAggregator(mapGraph{}, sink)

	a.OnDiagnosticAdd(report(1, domain.SeverityError))
	a.OnDiagnosticAdd(report(2, domain.SeverityError))

	cur := a.CurrentError()
	if cur == nil || cur.ID != 2 {
		t.Fatalf("expected last error to win, got %+v", cur)
	}
	if len(sink.errors) != 2 {
		t.Fatalf("expected both errors pushed to the sink, got %d", len(sink.errors))
	}
}

func TestWarningsNeverBlock(t *testing.T) {
	sink := &recordingSink{}
	a := NewAggregator(mapGraph{"/proj/src/a.re": {"/src/a.re"}}, sink)

	a.OnDiagnosticAdd(report(7, domain.SeverityWarning))
	if a.CurrentError() != nil {
		t.Fatalf("a warning must not become the current error")
	}
	if len(sink.warnings) != 1 || len(sink.errors) != 0 {
		t.Fatalf("expected warning routed to the sink only, got %+v", sink)
	}

	a.OnSourceFileChanged("/proj/src/a.re")
	d := a.OnBuildSuccess()
	if d.Kind != DecisionHotUpdate || d.ClearedError {
		t.Fatalf("expected a plain hot update, got %+v", d)
	}
}

func TestSuccessAfterErrorWithoutChangesReloads(t *testing.T) {
	a := NewAggregator(mapGraph{}, nil)
	a.OnDiagnosticAdd(report(3, domain.SeverityError))

	d := a.OnBuildSuccess()
	if d.Kind != DecisionFullReload {
		t.Fatalf("expected full reload to dismiss the overlay, got %s", d.Kind)
	}
	if !d.ClearedError {
		t.Fatalf("expected ClearedError")
	}
	if a.CurrentError() != nil {
		t.Fatalf("success must clear the current error")
	}

	if d := a.OnBuildSuccess(); d.Kind != DecisionNone {
		t.Fatalf("a clean rebuild should do nothing, got %s", d.Kind)
	}
}

func TestSuccessAfterErrorWithChangesHotUpdates(t *testing.T) {
	a := NewAggregator(mapGraph{"/proj/src/a.re": {"/src/a.re"}}, nil)
	a.OnSourceFileChanged("/proj/src/a.re")
	a.OnDiagnosticAdd(report(3, domain.SeverityError))

	d := a.OnBuildSuccess()
	if d.Kind != DecisionHotUpdate || !d.ClearedError {
		t.Fatalf("expected hot update that clears the error, got %+v", d)
	}
}

func TestRemoveClearsMatchingError(t *testing.T) {
	a := NewAggregator(mapGraph{}, nil)
	a.OnDiagnosticAdd(report(4, domain.SeverityError))

	if a.OnDiagnosticRemove(5) {
		t.Fatalf("removing another id must not clear the current error")
	}
	if a.CurrentError() == nil {
		t.Fatalf("current error should survive unrelated removal")
	}

	if !a.OnDiagnosticRemove(4) {
		t.Fatalf("expected removal of the current error")
	}
	if a.CurrentError() != nil {
		t.Fatalf("add then remove of the same id must leave no current error")
	}

	// the overlay was shown, so the next success still dismisses it
	if d := a.OnBuildSuccess(); d.Kind != DecisionFullReload {
		t.Fatalf("expected full reload, got %s", d.Kind)
	}
}

func TestStats(t *testing.T) {
	a := NewAggregator(mapGraph{"/a.re": {"/a.re"}}, nil)
	a.OnDiagnosticAdd(report(1, domain.SeverityError))
	a.OnDiagnosticAdd(report(2, domain.SeverityWarning))
	a.OnBuildSuccess()
	a.OnSourceFileChanged("/a.re")
	a.OnBuildSuccess()
	a.OnSourceFileChanged("/b.re")

	want := Stats{Builds: 2, Errors: 1, Warnings: 1, HotUpdates: 1, FullReloads: 1, Pending: 1}
	if got := a.Stats(); got != want {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
}

func TestDecisionKindString(t *testing.T) {
	if DecisionHotUpdate.String() != "hot_update" || DecisionFullReload.String() != "full_reload" || DecisionNone.String() != "none" {
		t.Fatalf("unexpected decision kind names")
	}
}
