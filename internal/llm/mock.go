package llm

import (
	"context"
	"sync"
)

var mockResponses = []string{
	"Based on the error description, this appears to be a database connection timeout issue. I recommend checking: 1) Database server status 2) Connection pool configuration 3) Network connectivity between services.",
	"This looks like a memory-related issue. The symptoms suggest a potential memory leak. Consider: 1) Analyzing heap dumps 2) Reviewing recent code changes 3) Monitoring memory usage patterns.",
	"The performance degradation suggests a bottleneck in the system. To diagnose: 1) Check database query performance 2) Review system resource utilization 3) Analyze request patterns.",
	"This appears to be an authentication/authorization issue. Steps to resolve: 1) Verify user permissions 2) Check authentication service logs 3) Review access control configuration.",
}

// MockProvider cycles through canned diagnostic responses. It never fails
// and needs no network, so it is the default provider for development and
// the evaluation harness.
type MockProvider struct {
	mu    sync.Mutex
	index int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Name() string {
	return "mock-llm"
}

func (p *MockProvider) Generate(_ context.Context, _ []Message, _ int, _ float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	response := mockResponses[p.index%len(mockResponses)]
	p.index++
	return response, nil
}
