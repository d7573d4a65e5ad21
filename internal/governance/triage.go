package governance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/ledger"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// Triage turns intake files into repo-scoped triaged items, running the
// Lane A gate for lane_a-origin intakes.
type Triage struct {
	gate *Gate
	now  func() time.Time
}

// NewTriage creates a triage runner over the given gate.
func NewTriage(gate *Gate) *Triage {
	return &Triage{gate: gate, now: time.Now}
}

// WithClock overrides the clock. Test hook.
func (t *Triage) WithClock(now func() time.Time) *Triage {
	t.now = now
	t.gate.WithClock(now)

	return t
}

// TriageResult reports one intake's outcome. A gate refusal is a result, not
// an error: the failure artifact and ledger line are already on disk.
type TriageResult struct {
	Intake     string
	OK         bool
	ReasonCode string
	Items      []model.TriagedItem
}

// Run triages one intake file. On gate failure it writes a TRIAGE_FAILED
// artifact and a ledger line, and produces no items.
func (t *Triage) Run(ctx context.Context, l *layout.Layout, repos []model.Repo, intakePath string) (*TriageResult, error) {
	raw, err := os.ReadFile(intakePath)
	if err != nil {
		return nil, contract.WrapError(contract.KindMissingInput, err, "intake %s", intakePath)
	}

	header, body := ParseIntake(raw)
	result := &TriageResult{Intake: filepath.Base(intakePath)}

	if header.Origin == OriginLaneA {
		err = t.gate.Check(ctx, l, repos, header)
		if err != nil {
			kind := contract.KindOf(err)
			if kind == "" {
				return nil, err
			}

			failErr := t.recordFailure(l, result.Intake, string(kind), err)
			if failErr != nil {
				return nil, failErr
			}

			result.ReasonCode = string(kind)

			return result, nil
		}
	}

	targets, err := t.resolveRepos(repos, header, body)
	if err != nil {
		return nil, err
	}

	items, err := t.emitItems(l, header, targets, result.Intake, body)
	if err != nil {
		return nil, err
	}

	err = t.archiveIntake(l, intakePath)
	if err != nil {
		return nil, err
	}

	err = ledger.Append(l.LaneBLedger(), ledger.Entry{
		"action": "triaged",
		"intake": result.Intake,
		"repos":  repoIDs(items),
	}, t.now())
	if err != nil {
		return nil, err
	}

	result.OK = true
	result.Items = items

	return result, nil
}

// resolveRepos picks the target repos. A repo scope narrows to exactly that
// repo; otherwise active repos whose keywords appear in the intake body, or
// every active repo when nothing matches.
func (t *Triage) resolveRepos(repos []model.Repo, header *IntakeHeader, body string) ([]model.Repo, error) {
	scopeRepo := ""
	if header.Scope != "" {
		repoID, err := model.ParseScope(header.Scope)
		if err != nil {
			return nil, contract.WrapError(contract.KindContractViolation, err, "intake scope")
		}

		scopeRepo = repoID
	}

	active := make([]model.Repo, 0, len(repos))

	for _, repo := range repos {
		if repo.Status != model.RepoStatusActive {
			continue
		}

		if scopeRepo != "" {
			if repo.RepoID == scopeRepo {
				return []model.Repo{repo}, nil
			}

			continue
		}

		active = append(active, repo)
	}

	if scopeRepo != "" {
		return nil, contract.NewError(contract.KindMissingInput,
			"scope repo %s is not an active registered repo", scopeRepo)
	}

	matched := matchKeywords(active, body)
	if len(matched) > 0 {
		return matched, nil
	}

	return active, nil
}

// matchKeywords selects repos whose registry keywords occur in the body.
func matchKeywords(repos []model.Repo, body string) []model.Repo {
	lowered := strings.ToLower(body)

	var matched []model.Repo

	for _, repo := range repos {
		for _, keyword := range repo.Keywords {
			if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
				matched = append(matched, repo)

				break
			}
		}
	}

	return matched
}

// emitItems writes one triaged item per target repo.
func (t *Triage) emitItems(l *layout.Layout, header *IntakeHeader, targets []model.Repo, intakeName, body string) ([]model.TriagedItem, error) {
	now := t.now()
	createdAt := model.NowRFC3339(now)
	stamp := layout.FSSafeTimestamp(createdAt)
	title := IntakeTitle(body)

	sort.Slice(targets, func(i, j int) bool { return targets[i].RepoID < targets[j].RepoID })

	items := make([]model.TriagedItem, 0, len(targets))

	for _, repo := range targets {
		item := model.TriagedItem{
			Version:          model.DocVersion,
			WorkID:           fmt.Sprintf("WI-%s-%s", repo.RepoID, stamp),
			RepoID:           repo.RepoID,
			TeamID:           repo.TeamID,
			Scope:            header.Scope,
			Origin:           header.Origin,
			KnowledgeVersion: header.KnowledgeVersion,
			IntakeApprovalID: header.IntakeApprovalID,
			Title:            title,
			IntakeFile:       intakeName,
			CreatedAt:        createdAt,
		}

		err := persist.WriteJSON(filepath.Join(l.LaneBTriagedDir(), item.WorkID+".json"), item)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}

// recordFailure writes the human-readable failure artifact and the ledger
// line before the refusal is returned.
func (t *Triage) recordFailure(l *layout.Layout, intakeName, reasonCode string, cause error) error {
	stamp := layout.FSSafeTimestamp(model.NowRFC3339(t.now()))
	name := fmt.Sprintf("TRIAGE_FAILED-%s__%s.md", stamp, strings.TrimSuffix(intakeName, filepath.Ext(intakeName)))

	var md strings.Builder

	fmt.Fprintf(&md, "# Triage failed: %s\n\n", intakeName)
	fmt.Fprintf(&md, "- Reason code: `%s`\n", reasonCode)
	fmt.Fprintf(&md, "- Detail: %s\n", cause.Error())
	fmt.Fprintf(&md, "- At: %s\n", model.NowRFC3339(t.now()))

	err := fsx.WriteFileAtomic(filepath.Join(l.LaneBTriageDir(), name), []byte(md.String()))
	if err != nil {
		return err
	}

	return ledger.Append(l.LaneBLedger(), ledger.Entry{
		"action":      "triage_failed",
		"intake":      intakeName,
		"reason_code": reasonCode,
		"detail":      cause.Error(),
	}, t.now())
}

// archiveIntake moves a triaged intake into the processed directory.
func (t *Triage) archiveIntake(l *layout.Layout, intakePath string) error {
	processed := l.LaneBProcessedDir()

	err := os.MkdirAll(processed, 0o755)
	if err != nil {
		return err
	}

	return os.Rename(intakePath, filepath.Join(processed, filepath.Base(intakePath)))
}

func repoIDs(items []model.TriagedItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.RepoID)
	}

	return ids
}
