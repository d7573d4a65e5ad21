package bundle

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
)

// systemCoreFiles are the knowledge documents every repo-scope bundle must
// carry from ssot/system.
var systemCoreFiles = []string{
	"PROJECT_SNAPSHOT.json",
	"minimum.json",
	"integration.json",
	"gaps.json",
	"assumptions.json",
	"milestones.json",
}

// includeEntry pairs a source file with its bundle-relative logical path.
type includeEntry struct {
	logicalPath string
	sourcePath  string
}

// collectIncludes resolves the scope's include list. Logical paths for
// knowledge files mirror their knowledge-root-relative location; decision
// packets land under lane_a/decision_packets.
func collectIncludes(l *layout.Layout, scope, repoID string) ([]includeEntry, error) {
	var entries []includeEntry

	addTree := func(absDir, logicalPrefix string) error {
		tree, err := walkFiles(absDir)
		if err != nil {
			return err
		}

		for _, file := range tree {
			rel, err := filepath.Rel(absDir, file)
			if err != nil {
				return err
			}

			entries = append(entries, includeEntry{
				logicalPath: joinLogical(logicalPrefix, filepath.ToSlash(rel)),
				sourcePath:  file,
			})
		}

		return nil
	}

	ssotSystem := l.KnowledgeSSOTSystemDir()
	views := l.KnowledgeViewsDir()

	if repoID == "" {
		err := addTree(ssotSystem, "ssot/system")
		if err != nil {
			return nil, err
		}

		for _, sub := range []string{"teams", "system"} {
			err = addTree(filepath.Join(views, sub), "views/"+sub)
			if err != nil {
				return nil, err
			}
		}

		mapPath := filepath.Join(views, "integration_map.json")
		if fileExists(mapPath) {
			entries = append(entries, includeEntry{logicalPath: "views/integration_map.json", sourcePath: mapPath})
		}
	} else {
		for _, name := range systemCoreFiles {
			core := filepath.Join(ssotSystem, name)
			if !fileExists(core) {
				return nil, contract.NewError(contract.KindMissingInput,
					"required system document %s missing; produce it before bundling %s", name, scope)
			}

			entries = append(entries, includeEntry{logicalPath: "ssot/system/" + name, sourcePath: core})
		}

		err := addTree(filepath.Join(ssotSystem, "sections"), "ssot/system/sections")
		if err != nil {
			return nil, err
		}

		err = addTree(l.KnowledgeSSOTRepoDir(repoID), "ssot/repos/"+repoID)
		if err != nil {
			return nil, err
		}

		err = addTree(filepath.Join(views, "repos", repoID), "views/repos/"+repoID)
		if err != nil {
			return nil, err
		}
	}

	err := addTree(l.KnowledgeEvidenceDir(), "evidence")
	if err != nil {
		return nil, err
	}

	packets, err := openDecisionPackets(l, scope)
	if err != nil {
		return nil, err
	}

	entries = append(entries, packets...)

	sort.Slice(entries, func(i, j int) bool { return entries[i].logicalPath < entries[j].logicalPath })

	return entries, nil
}

// openDecisionPackets returns the scope's open decision packets, JSON and
// markdown renderings alike.
func openDecisionPackets(l *layout.Layout, scope string) ([]includeEntry, error) {
	dir := l.DecisionPacketsDir()

	names, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var entries []includeEntry

	for _, entry := range names {
		name := entry.Name()

		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		var packet model.DecisionPacket

		err = json.Unmarshal(raw, &packet)
		if err != nil || packet.Status != "open" || packet.Scope != scope {
			continue
		}

		entries = append(entries, includeEntry{
			logicalPath: "lane_a/decision_packets/" + name,
			sourcePath:  filepath.Join(dir, name),
		})

		markdown := strings.TrimSuffix(name, ".json") + ".md"
		if fileExists(filepath.Join(dir, markdown)) {
			entries = append(entries, includeEntry{
				logicalPath: "lane_a/decision_packets/" + markdown,
				sourcePath:  filepath.Join(dir, markdown),
			})
		}
	}

	return entries, nil
}

// walkFiles lists every regular file under absDir; a missing directory is an
// empty tree.
func walkFiles(absDir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(absDir, func(walked string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && walked == absDir {
				return filepath.SkipAll
			}

			return err
		}

		if d.Type().IsRegular() {
			files = append(files, walked)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)

	return files, nil
}

func fileExists(absPath string) bool {
	info, err := os.Stat(absPath)

	return err == nil && info.Mode().IsRegular()
}

func joinLogical(prefix, rel string) string {
	return prefix + "/" + rel
}
