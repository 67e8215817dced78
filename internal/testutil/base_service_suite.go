package testutil

import (
	"context"
	"time"

	"github.com/ledgerline/taxengine/internal/config"
	"github.com/ledgerline/taxengine/internal/domain/calculation"
	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	"github.com/ledgerline/taxengine/internal/domain/taxrule"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	"github.com/ledgerline/taxengine/internal/logger"
	"github.com/ledgerline/taxengine/internal/postgres"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/ledgerline/taxengine/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	TaxZoneRepo     taxzone.Repository
	TaxRateRepo     taxrate.Repository
	TaxRuleRepo     taxrule.Repository
	CalculationRepo calculation.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	stores  Stores
	catalog *InMemoryCatalog
	client  *MockHTTPClient
	db      postgres.IClient
	logger  *logger.Logger
	config  *config.Configuration
	now     time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	// Initialize validator
	validator.NewValidator()

	// Initialize logger with test config
	cfg := &config.Configuration{
		Logging: config.LoggingConfig{
			Level: types.LogLevelInfo,
		},
		Calculation: config.CalculationConfig{
			DefaultMethod: types.CalculationMethodItemBased,
		},
	}
	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		TaxZoneRepo:     NewInMemoryTaxZoneStore(),
		TaxRateRepo:     NewInMemoryTaxRateStore(),
		TaxRuleRepo:     NewInMemoryTaxRuleStore(),
		CalculationRepo: NewInMemoryCalculationStore(),
	}

	s.catalog = NewInMemoryCatalog()
	s.client = NewMockHTTPClient()
	s.db = NewMockPostgresClient(s.logger, s.stores.CalculationRepo.(*InMemoryCalculationStore))
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.TaxZoneRepo.(*InMemoryTaxZoneStore).Clear()
	s.stores.TaxRateRepo.(*InMemoryTaxRateStore).Clear()
	s.stores.TaxRuleRepo.(*InMemoryTaxRuleStore).Clear()
	s.stores.CalculationRepo.(*InMemoryCalculationStore).Clear()
	s.catalog.Clear()
	s.client.Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetCatalog returns the in-memory product catalog
func (s *BaseServiceTestSuite) GetCatalog() *InMemoryCatalog {
	return s.catalog
}

// GetHTTPClient returns the mock HTTP client
func (s *BaseServiceTestSuite) GetHTTPClient() *MockHTTPClient {
	return s.client
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
