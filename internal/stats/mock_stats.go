package stats

import "github.com/stretchr/testify/mock"

// MockStatsUpdater records counter calls for tests of components that take a
// StatsProvider.
type MockStatsUpdater struct {
	mock.Mock
}

func (m *MockStatsUpdater) Incr(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) Decr(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) RegisterMetric(name string) {
	m.Called(name)
}

func (m *MockStatsUpdater) Run() {
	m.Called()
}

func (m *MockStatsUpdater) Stop() {
	m.Called()
}

// AllowCounters accepts any number of Incr and Decr calls for the named
// counters.
func (m *MockStatsUpdater) AllowCounters(names ...string) {
	for _, name := range names {
		m.On("Incr", name).Maybe()
		m.On("Decr", name).Maybe()
	}
}
