package marketAuth

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/internal/limiters"
	internalmetrics "github.com/MrEthical07/marketAuth/internal/metrics"
	"github.com/MrEthical07/marketAuth/jwt"
	"github.com/MrEthical07/marketAuth/password"
	"github.com/MrEthical07/marketAuth/throttle"
)

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	attemptStore throttle.Store
	userProvider UserProvider
	auditSink    AuditSink
	logger       *zap.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used for attempt records (unless
// WithAttemptStore is also given) and for the signup limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAttemptStore overrides where login attempt records live, for example a
// sqlstore.AttemptStore.
func (b *Builder) WithAttemptStore(store throttle.Store) *Builder {
	b.attemptStore = store
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for lockout and token timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- ATTEMPT STORE --------
	store := b.attemptStore
	switch {
	case store != nil:
	case b.redis != nil:
		store = throttle.NewRedisStore(b.redis, cfg.Throttle.RedisPrefix)
	case cfg.Throttle.AllowInMemory:
		logger.Warn("login attempts are kept in process memory; lockouts reset on restart")
		store = throttle.NewMemoryStore()
	default:
		return nil, errors.New("attempt store or redis client required")
	}

	th, err := throttle.New(store, cfg.Throttle.Policy(), throttle.WithClock(now))
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		throttle:     th,
		userProvider: b.userProvider,
		logger:       logger,
		now:          now,
	}

	// -------- SIGNUP LIMITER --------
	if cfg.Signup.Enabled && (cfg.Signup.EnableIPThrottle || cfg.Signup.EnableIdentifierThrottle) {
		if b.redis != nil {
			engine.signupLimiter = limiters.NewSignupLimiter(b.redis, limiters.SignupConfig{
				EnableIdentifierThrottle: cfg.Signup.EnableIdentifierThrottle,
				EnableIPThrottle:         cfg.Signup.EnableIPThrottle,
				MaxAttempts:              cfg.Signup.MaxAttempts,
				Cooldown:                 cfg.Signup.Cooldown,
			})
		} else {
			logger.Warn("signup throttling configured without redis; signups are not rate limited")
		}
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
