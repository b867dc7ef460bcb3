package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/memorymatch/internal/config"
	"github.com/mcoot/memorymatch/internal/dependencies/mocks"
	"github.com/mcoot/memorymatch/internal/events"
	"github.com/mcoot/memorymatch/internal/storage/memory"
	"github.com/mcoot/memorymatch/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App on memory storage with mocked time and randomness.
// Listeners bind loopback ephemeral ports.
func NewTestApp() *TestApp {
	cfg := config.Default()
	cfg.Server.TCPAddr = "127.0.0.1:0"
	cfg.Server.HTTP.Addr = "127.0.0.1:0"
	cfg.Auth.BcryptCost = bcrypt.MinCost

	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(cfg, store, events.Nop{}, mockClock, mockRandom, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}
