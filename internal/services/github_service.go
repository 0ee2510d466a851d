package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/triagedesk/backend/internal/logger"
)

// CommitAPI is the slice of the GitHub REST surface the correlator needs.
type CommitAPI interface {
	ListCommits(ctx context.Context, owner, repo string, perPage int) ([]APICommit, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*APICommitDetail, error)
	GetRepository(ctx context.Context, owner, repo string) (*APIRepository, error)
	ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error)
	GetTree(ctx context.Context, owner, repo, ref string) ([]APITreeEntry, error)
	GetFileContent(ctx context.Context, owner, repo, path string) (string, error)
}

type APICommit struct {
	SHA         string
	Message     string
	AuthorLogin string
	AuthorName  string
	Date        string
}

type APICommitFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Changes   int
	Patch     string
}

type APICommitStats struct {
	Additions int
	Deletions int
	Total     int
}

type APICommitDetail struct {
	APICommit
	Stats APICommitStats
	Files []APICommitFile
}

type APIRepository struct {
	FullName      string
	Description   string
	Language      string
	DefaultBranch string
}

type APITreeEntry struct {
	Path string
	Type string
	Size int
	SHA  string
}

// CommitFileAnalysis is one changed file with its risk classification.
type CommitFileAnalysis struct {
	Filename       string   `json:"filename"`
	Status         string   `json:"status"`
	Additions      int      `json:"additions"`
	Deletions      int      `json:"deletions"`
	Changes        int      `json:"changes"`
	Patch          string   `json:"patch,omitempty"`
	RiskLevel      string   `json:"risk_level"`
	Issues         []string `json:"issues,omitempty"`
	Language       string   `json:"language"`
	IsCriticalFile bool     `json:"is_critical_file"`
}

type CommitStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Total     int `json:"total"`
}

// CommitAnalysisEntry is one analyzed commit.
type CommitAnalysisEntry struct {
	SHA     string               `json:"sha"`
	Message string               `json:"message"`
	Author  string               `json:"author"`
	Date    string               `json:"date"`
	Stats   CommitStats          `json:"stats"`
	Files   []CommitFileAnalysis `json:"files"`
}

type CommitPatterns struct {
	CommitFrequency     int      `json:"commit_frequency"`
	UrgentCommits       int      `json:"urgent_commits"`
	ExperimentalCommits int      `json:"experimental_commits"`
	MessagePatterns     []string `json:"message_patterns,omitempty"`
}

// CommitAnalysis aggregates recent-commit analysis for one repository.
type CommitAnalysis struct {
	TotalCommits   int                   `json:"total_commits"`
	Commits        []CommitAnalysisEntry `json:"commits"`
	RiskIndicators []string              `json:"risk_indicators"`
	FileChanges    map[string]int        `json:"file_changes"`
	Authors        map[string]int        `json:"authors"`
	CommitPatterns CommitPatterns        `json:"commit_patterns"`
}

// Culprit is a commit the log correlation implicates, with its reasons.
type Culprit struct {
	Commit          CommitAnalysisEntry `json:"commit"`
	ConfidenceScore int                 `json:"confidence_score"`
	Reasons         []string            `json:"reasons"`
}

type LogCorrelation struct {
	LikelyCulprits []Culprit `json:"likely_culprits"`
	RelatedFiles   []string  `json:"related_files"`
}

type RiskAssessment struct {
	Level   string   `json:"level"`
	Score   int      `json:"score"`
	Factors []string `json:"factors"`
}

type RepositoryInfo struct {
	Name      string   `json:"name"`
	Language  string   `json:"language"`
	TechStack []string `json:"tech_stack"`
}

type CIFailureInfo struct {
	Workflow      string `json:"workflow"`
	CommitSHA     string `json:"commit_sha"`
	Branch        string `json:"branch"`
	FailureReason string `json:"failure_reason"`
}

type CodebaseFile struct {
	Content   string `json:"content"`
	Size      int    `json:"size"`
	Extension string `json:"extension"`
	Truncated bool   `json:"truncated"`
	Error     string `json:"error,omitempty"`
}

type Codebase struct {
	Repository string                  `json:"repository"`
	Branch     string                  `json:"branch"`
	Files      map[string]CodebaseFile `json:"files"`
	Structure  []string                `json:"structure"`
	TotalFiles int                     `json:"total_files"`
	TotalSize  int                     `json:"total_size"`
}

// CommitContext is everything the root-cause pipeline learns from source
// control for one CI failure. Available is false whenever any part of the
// fetch failed; consumers must treat the rest of the struct as absent then.
type CommitContext struct {
	Available           bool            `json:"available"`
	Error               string          `json:"error,omitempty"`
	Repository          RepositoryInfo  `json:"repository"`
	CIFailure           *CIFailureInfo  `json:"ci_failure,omitempty"`
	CommitAnalysis      *CommitAnalysis `json:"commit_analysis,omitempty"`
	LogCorrelation      *LogCorrelation `json:"log_correlation,omitempty"`
	RiskAssessment      *RiskAssessment `json:"risk_assessment,omitempty"`
	SuggestedFocusAreas []string        `json:"suggested_focus_areas,omitempty"`
	FullCodebase        *Codebase       `json:"full_codebase,omitempty"`
}

const (
	maxCommitsAnalyzed  = 50
	maxPatchChars       = 1000
	maxCodebaseBytes    = 200000
	maxCodebaseFileSize = 50000
)

var securityRiskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password\s*=\s*["'][^"']+["']`),
	regexp.MustCompile(`(?i)secret\s*=\s*["'][^"']+["']`),
	regexp.MustCompile(`(?i)api_?key\s*=\s*["'][^"']+["']`),
	regexp.MustCompile(`(?i)exec\s*\(`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)subprocess\.`),
	regexp.MustCompile(`(?i)shell\s*=\s*True`),
	regexp.MustCompile(`(?i)\.innerHTML\s*=`),
	regexp.MustCompile(`(?i)document\.write\s*\(`),
	regexp.MustCompile(`(?i)sql.*\+.*\+`),
}

var performanceRiskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)for.*in.*for.*in`),
	regexp.MustCompile(`(?i)while.*while`),
	regexp.MustCompile(`(?i)\.sync\(`),
	regexp.MustCompile(`(?i)time\.sleep\(`),
	regexp.MustCompile(`(?i)\.all\(\)\.count\(\)`),
	regexp.MustCompile(`(?i)SELECT \* FROM`),
	regexp.MustCompile(`(?i)setTimeout.*setTimeout`),
	regexp.MustCompile(`(?i)setInterval`),
}

var criticalFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.env`),
	regexp.MustCompile(`(?i)config\.(py|js|json|yaml|yml|go|toml)`),
	regexp.MustCompile(`(?i)settings\.(py|js)`),
	regexp.MustCompile(`(?i)Dockerfile`),
	regexp.MustCompile(`(?i)docker-compose\.ya?ml`),
	regexp.MustCompile(`(?i)package\.json`),
	regexp.MustCompile(`(?i)requirements\.txt`),
	regexp.MustCompile(`(?i)go\.mod`),
	regexp.MustCompile(`(?i)Makefile`),
	regexp.MustCompile(`(?i)\.github/workflows/`),
	regexp.MustCompile(`(?i)\.gitlab-ci\.ya?ml`),
	regexp.MustCompile(`(?i)migrations?/`),
	regexp.MustCompile(`(?i)schema\.(sql|py|js)`),
	regexp.MustCompile(`(?i)models\.(py|js)`),
	regexp.MustCompile(`(?i)auth\.(py|js)`),
	regexp.MustCompile(`(?i)security\.(py|js)`),
	regexp.MustCompile(`(?i)middleware\.(py|js)`),
	regexp.MustCompile(`(?i)main\.(py|js|go)`),
	regexp.MustCompile(`(?i)app\.(py|js)`),
	regexp.MustCompile(`(?i)server\.(py|js)`),
	regexp.MustCompile(`(?i)index\.(py|js|html)`),
	regexp.MustCompile(`(?i)core/`),
	regexp.MustCompile(`(?i)services/`),
	regexp.MustCompile(`(?i)controllers/`),
	regexp.MustCompile(`(?i)handlers/`),
}

var riskyCommitPhrases = []string{
	"quick fix",
	"hotfix",
	"urgent",
	"temporary",
	"hack",
	"todo",
	"fixme",
	"workaround",
	"disable",
	"comment out",
}

var urgentCommitKeywords = []string{"fix", "hotfix", "urgent", "critical", "bug", "error", "crash"}
var experimentalCommitKeywords = []string{"experiment", "test", "try", "attempt", "wip", "draft"}

var fileLanguages = map[string]string{
	".py": "python", ".js": "javascript", ".ts": "typescript",
	".jsx": "react", ".tsx": "react-typescript", ".java": "java",
	".go": "go", ".cpp": "cpp", ".c": "c", ".rs": "rust",
	".rb": "ruby", ".php": "php", ".cs": "csharp", ".sql": "sql",
	".yaml": "yaml", ".yml": "yaml", ".json": "json", ".xml": "xml",
	".html": "html", ".css": "css", ".scss": "scss", ".sh": "shell",
	".md": "markdown",
}

// GitHubService correlates CI failures with recent repository activity.
type GitHubService struct {
	api CommitAPI
}

func NewGitHubService(api CommitAPI) *GitHubService {
	return &GitHubService{api: api}
}

// GetCommitContext builds the full commit context for one repository. Any
// failure yields Available=false; the root-cause pipeline carries on without
// commit data rather than failing the analysis.
func (s *GitHubService) GetCommitContext(ctx context.Context, fullName, failureLogs string, includeFullCodebase bool) *CommitContext {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return &CommitContext{Available: false, Error: err.Error()}
	}

	analysis, err := s.analyzeRecentCommits(ctx, owner, repo)
	if err != nil {
		logger.Warn("Commit analysis failed", map[string]interface{}{
			"repository": fullName,
			"error":      err.Error(),
		})
		return &CommitContext{Available: false, Error: err.Error()}
	}

	repoInfo, err := s.repositoryInfo(ctx, owner, repo)
	if err != nil {
		logger.Warn("Repository context fetch failed", map[string]interface{}{
			"repository": fullName,
			"error":      err.Error(),
		})
		return &CommitContext{Available: false, Error: err.Error()}
	}

	correlation := correlateLogsWithCommits(failureLogs, analysis.Commits)
	risk := assessOverallRisk(analysis)

	context := &CommitContext{
		Available:           true,
		Repository:          *repoInfo,
		CommitAnalysis:      analysis,
		LogCorrelation:      correlation,
		RiskAssessment:      risk,
		SuggestedFocusAreas: suggestFocusAreas(analysis, correlation),
	}

	if includeFullCodebase {
		codebase, err := s.fetchFullCodebase(ctx, owner, repo)
		if err != nil {
			logger.Warn("Full codebase fetch failed", map[string]interface{}{
				"repository": fullName,
				"error":      err.Error(),
			})
		} else {
			context.FullCodebase = codebase
		}
	}

	return context
}

func splitFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q", fullName)
	}
	return parts[0], parts[1], nil
}

func (s *GitHubService) analyzeRecentCommits(ctx context.Context, owner, repo string) (*CommitAnalysis, error) {
	commits, err := s.api.ListCommits(ctx, owner, repo, maxCommitsAnalyzed)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}

	messages := make([]string, 0, len(commits))
	for _, c := range commits {
		messages = append(messages, c.Message)
	}

	analysis := &CommitAnalysis{
		TotalCommits:   len(commits),
		Commits:        make([]CommitAnalysisEntry, 0, len(commits)),
		RiskIndicators: []string{},
		FileChanges:    make(map[string]int),
		Authors:        make(map[string]int),
		CommitPatterns: analyzeCommitPatterns(messages),
	}

	for _, commit := range commits {
		entry := s.analyzeSingleCommit(ctx, owner, repo, commit)
		analysis.Commits = append(analysis.Commits, entry)

		for _, file := range entry.Files {
			analysis.FileChanges[file.Filename]++
		}
		if commit.AuthorLogin != "" {
			analysis.Authors[commit.AuthorLogin]++
		}
		analysis.RiskIndicators = append(analysis.RiskIndicators, identifyCommitRisks(entry)...)
	}

	return analysis, nil
}

func (s *GitHubService) analyzeSingleCommit(ctx context.Context, owner, repo string, commit APICommit) CommitAnalysisEntry {
	entry := CommitAnalysisEntry{
		SHA:     shortSHA(commit.SHA),
		Message: commit.Message,
		Author:  commit.AuthorLogin,
		Date:    commit.Date,
	}
	if entry.Author == "" {
		entry.Author = commit.AuthorName
	}

	detail, err := s.api.GetCommit(ctx, owner, repo, commit.SHA)
	if err != nil {
		// Per-commit detail failures degrade to a message-only entry.
		logger.Debug("Commit detail fetch failed", map[string]interface{}{
			"sha":   commit.SHA,
			"error": err.Error(),
		})
		return entry
	}

	entry.Stats = CommitStats{
		Additions: detail.Stats.Additions,
		Deletions: detail.Stats.Deletions,
		Total:     detail.Stats.Total,
	}
	for _, file := range detail.Files {
		patch := file.Patch
		if len(patch) > maxPatchChars {
			patch = patch[:maxPatchChars]
		}
		fileAnalysis := CommitFileAnalysis{
			Filename:       file.Filename,
			Status:         file.Status,
			Additions:      file.Additions,
			Deletions:      file.Deletions,
			Changes:        file.Changes,
			Patch:          patch,
			Language:       detectLanguage(file.Filename),
			IsCriticalFile: isCriticalFile(file.Filename),
		}
		fileAnalysis.RiskLevel, fileAnalysis.Issues = analyzeFileChanges(file)
		entry.Files = append(entry.Files, fileAnalysis)
	}
	return entry
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// analyzeFileChanges classifies one changed file: security risks in added
// lines escalate to high, performance risks and >100-line diffs to medium.
func analyzeFileChanges(file APICommitFile) (string, []string) {
	riskLevel := "low"
	var issues []string

	for _, line := range strings.Split(file.Patch, "\n") {
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}
		added := strings.TrimSpace(line[1:])

		if containsSecurityRisk(added) {
			issues = append(issues, "Security risk: "+truncate(added, 50)+"...")
			riskLevel = "high"
		} else if containsPerformanceRisk(added) {
			issues = append(issues, "Performance risk: "+truncate(added, 50)+"...")
			if riskLevel == "low" {
				riskLevel = "medium"
			}
		}
	}

	if file.Changes > 100 {
		issues = append(issues, fmt.Sprintf("Large change: %d lines modified", file.Changes))
		if riskLevel == "low" {
			riskLevel = "medium"
		}
	}

	return riskLevel, issues
}

func containsSecurityRisk(line string) bool {
	for _, pattern := range securityRiskPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

func containsPerformanceRisk(line string) bool {
	for _, pattern := range performanceRiskPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

func isCriticalFile(filename string) bool {
	for _, pattern := range criticalFilePatterns {
		if pattern.MatchString(filename) {
			return true
		}
	}
	return false
}

func detectLanguage(filename string) string {
	lower := strings.ToLower(filename)
	for ext, lang := range fileLanguages {
		if strings.HasSuffix(lower, ext) {
			return lang
		}
	}
	return "unknown"
}

func identifyCommitRisks(commit CommitAnalysisEntry) []string {
	var risks []string

	if commit.Stats.Total > 200 {
		risks = append(risks, fmt.Sprintf("Large commit: %d lines changed", commit.Stats.Total))
	}

	message := strings.ToLower(commit.Message)
	for _, phrase := range riskyCommitPhrases {
		if strings.Contains(message, phrase) {
			risks = append(risks, fmt.Sprintf("Risky commit message pattern: '%s'", phrase))
		}
	}

	criticalFiles := 0
	for _, file := range commit.Files {
		if file.IsCriticalFile {
			criticalFiles++
		}
	}
	if criticalFiles > 0 {
		risks = append(risks, fmt.Sprintf("Modified %d critical files", criticalFiles))
	}

	return risks
}

func analyzeCommitPatterns(messages []string) CommitPatterns {
	patterns := CommitPatterns{CommitFrequency: len(messages)}

	for _, message := range messages {
		lower := strings.ToLower(message)
		if containsAny(lower, urgentCommitKeywords) {
			patterns.UrgentCommits++
		}
		if containsAny(lower, experimentalCommitKeywords) {
			patterns.ExperimentalCommits++
		}
	}

	if float64(patterns.UrgentCommits) > float64(len(messages))*0.3 {
		patterns.MessagePatterns = append(patterns.MessagePatterns, "High frequency of urgent/fix commits")
	}
	if float64(patterns.ExperimentalCommits) > float64(len(messages))*0.2 {
		patterns.MessagePatterns = append(patterns.MessagePatterns, "High frequency of experimental commits")
	}
	return patterns
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// correlateLogsWithCommits scores each commit against the failure logs:
// +2 for message tokens shared with an error line, +3 for a changed file
// named in the logs, +2 when the commit carries high-risk changes. The
// percentage confidence is the score scaled by ten and capped at 100.
func correlateLogsWithCommits(logs string, commits []CommitAnalysisEntry) *LogCorrelation {
	correlation := &LogCorrelation{
		LikelyCulprits: []Culprit{},
		RelatedFiles:   []string{},
	}

	if logs == "" || len(commits) == 0 {
		return correlation
	}

	logsLower := strings.ToLower(logs)
	var errorLines []string
	for _, line := range strings.Split(logsLower, "\n") {
		if containsAny(line, []string{"error", "exception", "fail", "crash"}) {
			errorLines = append(errorLines, line)
		}
	}

	for _, commit := range commits {
		score := 0
		var reasons []string

		message := strings.ToLower(commit.Message)
		for _, errorLine := range errorLines {
			matched := false
			for _, word := range strings.Fields(errorLine) {
				if len(word) > 3 && strings.Contains(message, word) {
					matched = true
					break
				}
			}
			if matched {
				score += 2
				reasons = append(reasons, "Commit message relates to error: "+truncate(errorLine, 50)+"...")
			}
		}

		highRisk := false
		for _, file := range commit.Files {
			if file.Filename != "" && strings.Contains(logsLower, strings.ToLower(file.Filename)) {
				score += 3
				reasons = append(reasons, "Modified file appears in logs: "+file.Filename)
				correlation.RelatedFiles = append(correlation.RelatedFiles, file.Filename)
			}
			if file.RiskLevel == "high" {
				highRisk = true
			}
		}
		if highRisk {
			score += 2
			reasons = append(reasons, "High-risk code changes detected")
		}

		if score > 0 {
			confidence := score * 10
			if confidence > 100 {
				confidence = 100
			}
			correlation.LikelyCulprits = append(correlation.LikelyCulprits, Culprit{
				Commit:          commit,
				ConfidenceScore: confidence,
				Reasons:         reasons,
			})
		}
	}

	sort.SliceStable(correlation.LikelyCulprits, func(i, j int) bool {
		return correlation.LikelyCulprits[i].ConfidenceScore > correlation.LikelyCulprits[j].ConfidenceScore
	})

	return correlation
}

func assessOverallRisk(analysis *CommitAnalysis) *RiskAssessment {
	assessment := &RiskAssessment{Level: "low", Factors: []string{}}

	switch {
	case analysis.TotalCommits > 50:
		assessment.Score += 2
		assessment.Factors = append(assessment.Factors, fmt.Sprintf("Very active repository: %d commits", analysis.TotalCommits))
	case analysis.TotalCommits > 20:
		assessment.Score++
		assessment.Factors = append(assessment.Factors, fmt.Sprintf("Active repository: %d commits", analysis.TotalCommits))
	}

	assessment.Score += len(analysis.RiskIndicators)
	assessment.Factors = append(assessment.Factors, analysis.RiskIndicators...)

	if analysis.CommitPatterns.UrgentCommits > 2 {
		assessment.Score += analysis.CommitPatterns.UrgentCommits
		assessment.Factors = append(assessment.Factors, fmt.Sprintf("Multiple urgent/fix commits: %d", analysis.CommitPatterns.UrgentCommits))
	}
	if analysis.CommitPatterns.ExperimentalCommits > 1 {
		assessment.Score += analysis.CommitPatterns.ExperimentalCommits
		assessment.Factors = append(assessment.Factors, fmt.Sprintf("Experimental commits: %d", analysis.CommitPatterns.ExperimentalCommits))
	}

	switch {
	case assessment.Score >= 8:
		assessment.Level = "high"
	case assessment.Score >= 4:
		assessment.Level = "medium"
	}
	return assessment
}

func suggestFocusAreas(analysis *CommitAnalysis, correlation *LogCorrelation) []string {
	var suggestions []string

	if len(correlation.LikelyCulprits) > 0 {
		top := correlation.LikelyCulprits[0]
		suggestions = append(suggestions, fmt.Sprintf("Review commit %s (confidence: %d%%)", top.Commit.SHA, top.ConfidenceScore))
	}

	mostChangedFile, mostChangedCount := "", 0
	for filename, count := range analysis.FileChanges {
		if count > mostChangedCount || (count == mostChangedCount && filename < mostChangedFile) {
			mostChangedFile, mostChangedCount = filename, count
		}
	}
	if mostChangedCount > 1 {
		suggestions = append(suggestions, fmt.Sprintf("Focus on %s (changed %d times)", mostChangedFile, mostChangedCount))
	}

	var highRiskIndicators []string
	for _, indicator := range analysis.RiskIndicators {
		lower := strings.ToLower(indicator)
		if strings.Contains(lower, "high") || strings.Contains(lower, "critical") {
			highRiskIndicators = append(highRiskIndicators, indicator)
		}
	}
	if len(highRiskIndicators) > 0 {
		if len(highRiskIndicators) > 2 {
			highRiskIndicators = highRiskIndicators[:2]
		}
		suggestions = append(suggestions, "Review high-risk changes: "+strings.Join(highRiskIndicators, "; "))
	}

	largeCommits := 0
	for _, commit := range analysis.Commits {
		if commit.Stats.Total > 100 {
			largeCommits++
		}
	}
	if largeCommits > 0 {
		suggestions = append(suggestions, fmt.Sprintf("Review large recent commits: %d commits with >100 lines changed", largeCommits))
	}

	return suggestions
}

var codebaseExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {}, ".java": {},
	".go": {}, ".cpp": {}, ".c": {}, ".rs": {}, ".rb": {}, ".php": {},
	".cs": {}, ".sql": {}, ".yaml": {}, ".yml": {}, ".json": {}, ".xml": {},
	".html": {}, ".css": {}, ".scss": {}, ".sh": {}, ".md": {}, ".txt": {},
	".env": {}, ".gitignore": {}, ".toml": {}, ".ini": {}, ".cfg": {}, ".conf": {},
}

// fetchFullCodebase pulls the repository tree and the most important files,
// bounded at 50KB per file and 200KB overall.
func (s *GitHubService) fetchFullCodebase(ctx context.Context, owner, repo string) (*Codebase, error) {
	repository, err := s.api.GetRepository(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	tree, err := s.api.GetTree(ctx, owner, repo, repository.DefaultBranch)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	codebase := &Codebase{
		Repository: owner + "/" + repo,
		Branch:     repository.DefaultBranch,
		Files:      make(map[string]CodebaseFile),
	}

	var candidates []APITreeEntry
	for _, entry := range tree {
		if entry.Type != "blob" {
			continue
		}
		if isCodebaseFile(entry.Path) {
			candidates = append(candidates, entry)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return fileImportanceScore(candidates[i].Path) > fileImportanceScore(candidates[j].Path)
	})

	totalSize := 0
	for _, entry := range candidates {
		if totalSize >= maxCodebaseBytes {
			break
		}

		if entry.Size > maxCodebaseFileSize {
			codebase.Files[entry.Path] = CodebaseFile{
				Content:   fmt.Sprintf("[File too large: %d bytes]", entry.Size),
				Size:      entry.Size,
				Extension: fileExtension(entry.Path),
				Truncated: true,
			}
			continue
		}

		content, err := s.api.GetFileContent(ctx, owner, repo, entry.Path)
		if err != nil {
			codebase.Files[entry.Path] = CodebaseFile{
				Content:   "[Error reading file: " + err.Error() + "]",
				Size:      entry.Size,
				Extension: fileExtension(entry.Path),
				Error:     err.Error(),
			}
			continue
		}

		if totalSize+len(content) > maxCodebaseBytes {
			content = content[:maxCodebaseBytes-totalSize] + "\n[TRUNCATED]"
		}
		codebase.Files[entry.Path] = CodebaseFile{
			Content:   content,
			Size:      entry.Size,
			Extension: fileExtension(entry.Path),
		}
		totalSize += len(content)
		codebase.TotalFiles++
	}

	codebase.TotalSize = totalSize
	codebase.Structure = buildDirectoryStructure(codebase.Files)

	logger.Info("Fetched repository snapshot", map[string]interface{}{
		"repository": codebase.Repository,
		"files":      codebase.TotalFiles,
		"bytes":      totalSize,
	})
	return codebase, nil
}

func isCodebaseFile(path string) bool {
	if _, ok := codebaseExtensions[fileExtension(path)]; ok {
		return true
	}
	lower := strings.ToLower(path)
	for _, name := range []string{"makefile", "dockerfile", "readme", "license"} {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

func fileExtension(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}

func fileImportanceScore(path string) int {
	score := 0
	lower := strings.ToLower(path)

	if containsAny(lower, []string{"package.json", "requirements.txt", "pom.xml", "build.gradle", "dockerfile", "docker-compose", "makefile", ".env", "config", "go.mod"}) {
		score += 100
	}
	if containsAny(lower, []string{"main.", "app.", "server.", "index."}) {
		score += 80
	}
	if containsAny(lower, []string{"test", "spec"}) {
		score += 60
	}
	for _, ext := range []string{".py", ".js", ".ts", ".java", ".go", ".cpp", ".c", ".rs"} {
		if strings.HasSuffix(lower, ext) {
			score += 40
			break
		}
	}
	if containsAny(lower, []string{".github", ".gitlab", "ci", "cd"}) {
		score += 30
	}
	if containsAny(lower, []string{"readme", "doc"}) {
		score += 20
	}
	return score
}

func buildDirectoryStructure(files map[string]CodebaseFile) []string {
	directories := make(map[string]struct{})
	for path := range files {
		parts := strings.Split(path, "/")
		for i := range parts {
			directories[strings.Join(parts[:i+1], "/")] = struct{}{}
		}
	}
	structure := make([]string, 0, len(directories))
	for dir := range directories {
		structure = append(structure, dir)
	}
	sort.Strings(structure)
	return structure
}

func (s *GitHubService) repositoryInfo(ctx context.Context, owner, repo string) (*RepositoryInfo, error) {
	repository, err := s.api.GetRepository(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	info := &RepositoryInfo{
		Name:     repository.FullName,
		Language: repository.Language,
	}

	languages, err := s.api.ListLanguages(ctx, owner, repo)
	if err != nil {
		// Tech stack is decoration; the primary language already came back.
		logger.Debug("Language listing failed", map[string]interface{}{
			"repository": repository.FullName,
			"error":      err.Error(),
		})
		return info, nil
	}

	type langBytes struct {
		name  string
		bytes int
	}
	stack := make([]langBytes, 0, len(languages))
	for name, size := range languages {
		stack = append(stack, langBytes{name, size})
	}
	sort.SliceStable(stack, func(i, j int) bool {
		if stack[i].bytes != stack[j].bytes {
			return stack[i].bytes > stack[j].bytes
		}
		return stack[i].name < stack[j].name
	})
	for _, lang := range stack {
		info.TechStack = append(info.TechStack, lang.name)
	}
	return info, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ellipsize caps s at n runes and marks the cut with "...". Rune slicing
// keeps multi-byte characters intact.
func ellipsize(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
