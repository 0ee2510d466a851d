package services

import (
	"context"
	"strings"
	"testing"
)

func TestSplitFullName(t *testing.T) {
	owner, repo, err := splitFullName("acme/checkout")
	if err != nil {
		t.Fatalf("splitFullName failed: %v", err)
	}
	if owner != "acme" || repo != "checkout" {
		t.Errorf("Expected acme/checkout, got %s/%s", owner, repo)
	}

	for _, invalid := range []string{"", "acme", "/checkout", "acme/"} {
		if _, _, err := splitFullName(invalid); err == nil {
			t.Errorf("Expected error for %q", invalid)
		}
	}
}

func TestAnalyzeFileChanges(t *testing.T) {
	tests := []struct {
		name      string
		file      APICommitFile
		riskLevel string
		issues    int
	}{
		{
			name: "hardcoded secret escalates to high",
			file: APICommitFile{
				Filename: "settings.py",
				Patch:    "+password = \"hunter2\"\n-old line",
				Changes:  2,
			},
			riskLevel: "high",
			issues:    1,
		},
		{
			name: "unbounded query is medium",
			file: APICommitFile{
				Filename: "queries.sql",
				Patch:    "+SELECT * FROM orders",
				Changes:  1,
			},
			riskLevel: "medium",
			issues:    1,
		},
		{
			name: "large diff is medium",
			file: APICommitFile{
				Filename: "handler.go",
				Patch:    "+plain addition",
				Changes:  150,
			},
			riskLevel: "medium",
			issues:    1,
		},
		{
			name: "small clean diff stays low",
			file: APICommitFile{
				Filename: "README.md",
				Patch:    "+typo fix",
				Changes:  1,
			},
			riskLevel: "low",
			issues:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			riskLevel, issues := analyzeFileChanges(tt.file)
			if riskLevel != tt.riskLevel {
				t.Errorf("Expected risk level %s, got %s", tt.riskLevel, riskLevel)
			}
			if len(issues) != tt.issues {
				t.Errorf("Expected %d issues, got %d: %v", tt.issues, len(issues), issues)
			}
		})
	}
}

func TestIdentifyCommitRisks(t *testing.T) {
	commit := CommitAnalysisEntry{
		SHA:     "abc12345",
		Message: "hotfix: disable payment retries as a workaround",
		Stats:   CommitStats{Total: 250},
		Files: []CommitFileAnalysis{
			{Filename: "config.yaml", IsCriticalFile: true},
			{Filename: "notes.txt", IsCriticalFile: false},
		},
	}

	risks := identifyCommitRisks(commit)

	// Large commit + three risky phrases + critical file count.
	if len(risks) != 5 {
		t.Fatalf("Expected 5 risks, got %d: %v", len(risks), risks)
	}
	if !strings.Contains(risks[0], "250 lines changed") {
		t.Errorf("Expected large-commit risk first, got %s", risks[0])
	}
	if !strings.Contains(risks[len(risks)-1], "1 critical files") {
		t.Errorf("Expected critical-file risk last, got %s", risks[len(risks)-1])
	}
}

func TestIsCriticalFile(t *testing.T) {
	critical := []string{"config.yaml", ".env", "Dockerfile", "go.mod", "migrations/0001_init.sql", "internal/services/foo.go"}
	for _, path := range critical {
		if !isCriticalFile(path) {
			t.Errorf("Expected %s to be critical", path)
		}
	}
	if isCriticalFile("notes.txt") {
		t.Error("Expected notes.txt to be non-critical")
	}
}

func TestDetectLanguage(t *testing.T) {
	if got := detectLanguage("cmd/server/main.go"); got != "go" {
		t.Errorf("Expected go, got %s", got)
	}
	if got := detectLanguage("binary.bin"); got != "unknown" {
		t.Errorf("Expected unknown, got %s", got)
	}
}

func TestAnalyzeCommitPatterns(t *testing.T) {
	messages := []string{
		"fix login crash",
		"urgent: patch auth bug",
		"hotfix for checkout error",
		"fix flaky retry",
		"wip: experiment with cache",
		"try new pool settings",
		"experiment with batching",
		"add docs",
		"refactor config loading",
		"update dependencies",
	}

	patterns := analyzeCommitPatterns(messages)

	if patterns.CommitFrequency != 10 {
		t.Errorf("Expected frequency 10, got %d", patterns.CommitFrequency)
	}
	if patterns.UrgentCommits != 4 {
		t.Errorf("Expected 4 urgent commits, got %d", patterns.UrgentCommits)
	}
	if patterns.ExperimentalCommits != 3 {
		t.Errorf("Expected 3 experimental commits, got %d", patterns.ExperimentalCommits)
	}
	if len(patterns.MessagePatterns) != 2 {
		t.Errorf("Expected both message patterns to trigger, got %v", patterns.MessagePatterns)
	}
}

func TestCorrelateLogsWithCommits(t *testing.T) {
	commits := []CommitAnalysisEntry{
		{
			SHA:     "aaa11111",
			Message: "fix timeout in worker pool",
			Files: []CommitFileAnalysis{
				{Filename: "worker.py", RiskLevel: "high"},
			},
		},
		{
			SHA:     "bbb22222",
			Message: "update readme",
			Files: []CommitFileAnalysis{
				{Filename: "README.md", RiskLevel: "low"},
			},
		},
	}
	logs := "ERROR: timeout waiting for worker.py response\nall checks passed"

	correlation := correlateLogsWithCommits(logs, commits)

	// First commit: +2 message token, +3 filename in logs, +2 high risk.
	if len(correlation.LikelyCulprits) != 1 {
		t.Fatalf("Expected 1 culprit, got %d", len(correlation.LikelyCulprits))
	}
	culprit := correlation.LikelyCulprits[0]
	if culprit.Commit.SHA != "aaa11111" {
		t.Errorf("Expected culprit aaa11111, got %s", culprit.Commit.SHA)
	}
	if culprit.ConfidenceScore != 70 {
		t.Errorf("Expected confidence 70, got %d", culprit.ConfidenceScore)
	}
	if len(culprit.Reasons) != 3 {
		t.Errorf("Expected 3 reasons, got %v", culprit.Reasons)
	}
	if len(correlation.RelatedFiles) != 1 || correlation.RelatedFiles[0] != "worker.py" {
		t.Errorf("Expected related files [worker.py], got %v", correlation.RelatedFiles)
	}
}

func TestCorrelateLogsCapsConfidence(t *testing.T) {
	files := make([]CommitFileAnalysis, 0, 12)
	logsBuilder := strings.Builder{}
	logsBuilder.WriteString("error: cascade failure\n")
	for i := 0; i < 12; i++ {
		name := "module" + string(rune('a'+i)) + ".py"
		files = append(files, CommitFileAnalysis{Filename: name, RiskLevel: "low"})
		logsBuilder.WriteString(name + " failed\n")
	}

	correlation := correlateLogsWithCommits(logsBuilder.String(), []CommitAnalysisEntry{
		{SHA: "ccc33333", Message: "refactor modules", Files: files},
	})

	if len(correlation.LikelyCulprits) != 1 {
		t.Fatalf("Expected 1 culprit, got %d", len(correlation.LikelyCulprits))
	}
	if got := correlation.LikelyCulprits[0].ConfidenceScore; got != 100 {
		t.Errorf("Expected confidence capped at 100, got %d", got)
	}
}

func TestCorrelateLogsEmptyInputs(t *testing.T) {
	correlation := correlateLogsWithCommits("", []CommitAnalysisEntry{{SHA: "abc"}})
	if len(correlation.LikelyCulprits) != 0 {
		t.Errorf("Expected no culprits without logs, got %d", len(correlation.LikelyCulprits))
	}
	correlation = correlateLogsWithCommits("error: boom", nil)
	if len(correlation.LikelyCulprits) != 0 {
		t.Errorf("Expected no culprits without commits, got %d", len(correlation.LikelyCulprits))
	}
}

func TestAssessOverallRisk(t *testing.T) {
	low := assessOverallRisk(&CommitAnalysis{TotalCommits: 5})
	if low.Level != "low" || low.Score != 0 {
		t.Errorf("Expected low/0, got %s/%d", low.Level, low.Score)
	}

	medium := assessOverallRisk(&CommitAnalysis{
		TotalCommits:   25,
		RiskIndicators: []string{"a", "b", "c"},
	})
	if medium.Level != "medium" || medium.Score != 4 {
		t.Errorf("Expected medium/4, got %s/%d", medium.Level, medium.Score)
	}

	high := assessOverallRisk(&CommitAnalysis{
		TotalCommits:   25,
		RiskIndicators: []string{"a", "b", "c", "d"},
		CommitPatterns: CommitPatterns{UrgentCommits: 3},
	})
	if high.Level != "high" || high.Score != 8 {
		t.Errorf("Expected high/8, got %s/%d", high.Level, high.Score)
	}
}

func TestGetCommitContext(t *testing.T) {
	api := &fakeCommitAPI{
		commits: []APICommit{
			{SHA: "aaa1111122222", Message: "hotfix timeout in worker", AuthorLogin: "dev1", Date: "2026-08-01T10:00:00Z"},
		},
		details: map[string]*APICommitDetail{
			"aaa1111122222": {
				APICommit: APICommit{SHA: "aaa1111122222", Message: "hotfix timeout in worker"},
				Stats:     APICommitStats{Additions: 10, Deletions: 5, Total: 15},
				Files: []APICommitFile{
					{Filename: "worker.py", Status: "modified", Changes: 15, Patch: "+time.sleep(5)"},
				},
			},
		},
		repo:  &APIRepository{FullName: "acme/checkout", Language: "Python", DefaultBranch: "main"},
		langs: map[string]int{"Python": 9000, "Shell": 100},
	}
	service := NewGitHubService(api)

	commitCtx := service.GetCommitContext(context.Background(), "acme/checkout", "ERROR: timeout in worker.py", false)

	if !commitCtx.Available {
		t.Fatalf("Expected commit context to be available, error: %s", commitCtx.Error)
	}
	if commitCtx.Repository.Name != "acme/checkout" {
		t.Errorf("Expected repository acme/checkout, got %s", commitCtx.Repository.Name)
	}
	if len(commitCtx.Repository.TechStack) != 2 || commitCtx.Repository.TechStack[0] != "Python" {
		t.Errorf("Expected tech stack led by Python, got %v", commitCtx.Repository.TechStack)
	}
	if commitCtx.CommitAnalysis == nil || commitCtx.CommitAnalysis.TotalCommits != 1 {
		t.Fatal("Expected one analyzed commit")
	}
	if commitCtx.LogCorrelation == nil || len(commitCtx.LogCorrelation.LikelyCulprits) == 0 {
		t.Fatal("Expected the worker commit to correlate with the failure logs")
	}
	if commitCtx.RiskAssessment == nil {
		t.Fatal("Expected a risk assessment")
	}
	if len(commitCtx.SuggestedFocusAreas) == 0 {
		t.Error("Expected suggested focus areas")
	}
}

func TestGetCommitContextUnavailableOnFetchFailure(t *testing.T) {
	service := NewGitHubService(&fakeCommitAPI{listErr: errStoreDown})

	commitCtx := service.GetCommitContext(context.Background(), "acme/checkout", "", false)

	if commitCtx.Available {
		t.Error("Expected context to be unavailable after a fetch failure")
	}
	if commitCtx.Error == "" {
		t.Error("Expected the fetch error to be recorded")
	}
}

func TestGetCommitContextInvalidRepositoryName(t *testing.T) {
	service := NewGitHubService(&fakeCommitAPI{})

	commitCtx := service.GetCommitContext(context.Background(), "not-a-full-name", "", false)

	if commitCtx.Available {
		t.Error("Expected context to be unavailable for an invalid repository name")
	}
}

func TestFetchFullCodebase(t *testing.T) {
	api := &fakeCommitAPI{
		commits: []APICommit{},
		repo:    &APIRepository{FullName: "acme/checkout", Language: "Go", DefaultBranch: "main"},
		tree: []APITreeEntry{
			{Path: "cmd/server/main.go", Type: "blob", Size: 24},
			{Path: "internal/worker.go", Type: "blob", Size: 18},
			{Path: "huge_dump.sql", Type: "blob", Size: 60000},
			{Path: "assets/logo.png", Type: "blob", Size: 100},
			{Path: "internal", Type: "tree"},
		},
		contents: map[string]string{
			"cmd/server/main.go": "package main\n\nfunc main() {}",
			"internal/worker.go": "package internal\n",
		},
	}
	service := NewGitHubService(api)

	commitCtx := service.GetCommitContext(context.Background(), "acme/checkout", "", true)
	if !commitCtx.Available {
		t.Fatalf("Expected available context, error: %s", commitCtx.Error)
	}
	codebase := commitCtx.FullCodebase
	if codebase == nil {
		t.Fatal("Expected a full codebase snapshot")
	}

	if codebase.TotalFiles != 2 {
		t.Errorf("Expected 2 fetched files, got %d", codebase.TotalFiles)
	}
	if _, ok := codebase.Files["assets/logo.png"]; ok {
		t.Error("Binary assets should be skipped")
	}
	huge, ok := codebase.Files["huge_dump.sql"]
	if !ok || !huge.Truncated {
		t.Error("Expected the oversized file to be recorded as truncated")
	}
	found := false
	for _, entry := range codebase.Structure {
		if entry == "cmd/server/main.go" {
			found = true
		}
	}
	if !found {
		t.Error("Expected the directory structure to include fetched paths")
	}
}

func TestFileImportanceScore(t *testing.T) {
	if fileImportanceScore("go.mod") <= fileImportanceScore("docs/notes.md") {
		t.Error("Expected manifests to outrank documentation")
	}
	if fileImportanceScore("cmd/server/main.go") <= fileImportanceScore("internal/util.go") {
		t.Error("Expected entry points to outrank plain source files")
	}
}
