package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Avishek-7/URL-Shortening-service/cache"
	"github.com/Avishek-7/URL-Shortening-service/dto"
	"github.com/Avishek-7/URL-Shortening-service/flusher"
	"github.com/Avishek-7/URL-Shortening-service/repo"
	"github.com/Avishek-7/URL-Shortening-service/service"
	"github.com/Avishek-7/URL-Shortening-service/shared"
	"github.com/Avishek-7/URL-Shortening-service/util"
)

var logger *shared.Logger
var metrics *shared.Metrics
var requestPerSecond *prometheus.CounterVec
var TwoXXStatusCode *prometheus.GaugeVec
var FourXXStatusCode *prometheus.GaugeVec
var FiveXXStatusCode *prometheus.GaugeVec
var resolveLatency *prometheus.HistogramVec
var tracer *shared.Tracer
var cacheClient *shared.CacheClient
var cacheBackend cache.Cache
var linkRepo *repo.ShortLinkRepo
var clicks *cache.ClickAccumulator
var urlService *service.UrlService
var clickFlusher *flusher.Flusher
var rabbitmq *shared.RabbitMQ

func init() {
	godotenv.Load()

	logger = shared.NewLogger("shorten.log", 3, 1024, os.Getenv("LOG_LEVEL"), "shorten")
	logger.Init()

	// Init tracer
	tracer = shared.NewTracer("shorten", "")
	tracer.Init()

	// Init repo
	var err error
	linkRepo, err = repo.NewShortLinkRepo("")
	if err != nil {
		logger.Error("CannotConnectPostgres", zap.Error(err))
		os.Exit(1)
	}

	// Auto migrate
	if err := linkRepo.Migrate(); err != nil {
		logger.Error("CannotMigrate", zap.Error(err))
		os.Exit(1)
	}

	// Init cache backend. Redis when configured, otherwise an in-process
	// cache so a missing Redis degrades the deployment instead of blocking it.
	if os.Getenv("REDIS_HOST") != "" {
		cacheClient = shared.NewCacheClient(shared.RedisDefaultConfig())
		if err := cacheClient.Connect(); err != nil {
			logger.Error("CannotConnectRedis", zap.Error(err))
			os.Exit(1)
		}
		cacheBackend = cacheClient
	} else {
		logger.Warn("NoRedisConfigured", zap.String("fallback", "in-process cache"))
		cacheBackend = cache.NewMemory()
	}

	// Init rabbitmq (optional analytics pipeline)
	if os.Getenv("RABBITMQ_HOST") != "" {
		rabbitmq = shared.NewRabbitMQ("")
		if err := rabbitmq.Connect(10 * time.Second); err != nil {
			logger.Error("CannotConnectRabbitMQ", zap.Error(err))
			rabbitmq = nil
		}
	}

	// Init metrics
	metrics = shared.NewMetrics()
	requestPerSecond = metrics.RegisterCounter("request_per_second", "Request per second", []string{"method", "path"})
	TwoXXStatusCode = metrics.RegisterGauge("status_code_2xx", "2xx status code", []string{"method", "path", "code"})
	FourXXStatusCode = metrics.RegisterGauge("status_code_4xx", "4xx status code", []string{"method", "path", "code"})
	FiveXXStatusCode = metrics.RegisterGauge("status_code_5xx", "5xx status code", []string{"method", "path", "code"})
	resolveLatency = metrics.RegisterHistogram("resolve_latency_seconds", "Resolve latency", []string{"outcome"}, []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1})

	tierMetrics := &service.TierMetrics{
		Hit:   metrics.RegisterCounter("cache_hit_total", "Cache hits per tier", []string{"tier"}),
		Miss:  metrics.RegisterCounter("cache_miss_total", "Cache misses per tier", []string{"tier"}),
		Fault: metrics.RegisterCounter("cache_fault_total", "Cache tier failures", []string{"tier"}),
	}
	flushMetrics := &flusher.Metrics{
		Clicks: metrics.RegisterCounter("flush_clicks_total", "Flushed click deltas by result", []string{"result"}),
	}

	clicks = cache.NewClickAccumulator(cacheBackend)
	urlService = service.NewUrlService(linkRepo, cacheBackend, clicks, logger, tierMetrics)
	clickFlusher = flusher.New(linkRepo, clicks, cacheBackend, logger, flushMetrics, flushInterval())

	logger.Info("Init done!!!")
}

func flushInterval() time.Duration {
	seconds, err := strconv.Atoi(os.Getenv("FLUSH_CLICKS_INTERVAL_SECONDS"))
	if err != nil || seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

func rateLimitPerMinute() int {
	max, err := strconv.Atoi(os.Getenv("RATE_LIMIT"))
	if err != nil || max <= 0 {
		max = 60
	}
	return max
}

func RequestCounterMiddleware(c *fiber.Ctx) error {
	metrics.IncCounter(requestPerSecond, c.Method(), c.Path())
	return c.Next()
}

func ResponseStatusCodeMiddleware(c *fiber.Ctx) error {
	c.Next()
	statusCode := c.Response().StatusCode()
	if statusCode >= 200 && statusCode < 300 {
		metrics.IncGauge(TwoXXStatusCode, c.Method(), c.Path(), strconv.Itoa(statusCode))
	}
	if statusCode >= 400 && statusCode < 500 {
		metrics.IncGauge(FourXXStatusCode, c.Method(), c.Path(), strconv.Itoa(statusCode))
	}
	if statusCode >= 500 {
		metrics.IncGauge(FiveXXStatusCode, c.Method(), c.Path(), strconv.Itoa(statusCode))
	}
	return nil
}

// errStatus maps the service error taxonomy to HTTP statuses, matching the
// original API contract: missing code 404, expired link 410.
func errStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidUrl), errors.Is(err, service.ErrInvalidAlias):
		return 400
	case errors.Is(err, service.ErrShortCodeNotFound):
		return 404
	case errors.Is(err, service.ErrAliasConflict):
		return 409
	case errors.Is(err, service.ErrLinkExpired):
		return 410
	case errors.Is(err, service.ErrStoreUnavailable):
		return 503
	default:
		return 500
	}
}

func createHandler(c *fiber.Ctx) error {
	ctx, span := tracer.StartSpan("CreateHandler", shared.GetParentContext(c), trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	requestID := util.GenUUID()
	var shortenDto dto.ShortenRequestDto
	if err := c.BodyParser(&shortenDto); err != nil {
		logger.Error("CannotParseBody", zap.String("id", requestID), zap.Int("code", 400), zap.Error(err))
		return c.Status(400).JSON(dto.ErrorResponseDto{Error: "Cannot parse body"})
	}

	if shortenDto.ExpireInDays < 0 || shortenDto.ExpireInDays > 365 {
		return c.Status(400).JSON(dto.ErrorResponseDto{Error: "expireInDays must be between 1 and 365"})
	}

	logger.Info("RequestShorten", zap.String("id", requestID), zap.String("url", shortenDto.Url), zap.String("alias", shortenDto.CustomAlias))

	link, err := urlService.CreateShortLink(ctx, shortenDto.Url, shortenDto.CustomAlias, shortenDto.ExpireInDays)
	if err != nil {
		logger.Error("CannotShorten", zap.String("id", requestID), zap.Int("code", errStatus(err)), zap.Error(err))
		return c.Status(errStatus(err)).JSON(dto.ErrorResponseDto{Error: err.Error()})
	}

	logger.Info("ShortenUrl", zap.String("id", requestID), zap.String("code", link.ShortCode))
	return c.Status(200).JSON(dto.ShortenResponseDto{ShortCode: link.ShortCode, Url: link.LongUrl})
}

func redirectHandler(c *fiber.Ctx) error {
	ctx, span := tracer.StartSpan("RedirectHandler", shared.GetParentContext(c), trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	code := c.Params("code")
	start := time.Now()

	longUrl, err := urlService.Resolve(ctx, code)
	if err != nil {
		metrics.ObserveHistogram(resolveLatency, time.Since(start).Seconds(), "error")
		logger.Info("CannotResolve", zap.String("code", code), zap.Int("status", errStatus(err)), zap.Error(err))
		return c.Status(errStatus(err)).JSON(dto.ErrorResponseDto{Error: err.Error()})
	}
	metrics.ObserveHistogram(resolveLatency, time.Since(start).Seconds(), "ok")

	// Click accounting and analytics stay off the redirect response path.
	headers := shared.InjectAmqpTraceHeader(ctx)
	go func() {
		bgCtx := context.Background()
		urlService.RecordClick(bgCtx, code)

		if rabbitmq != nil {
			analyticMessage := shared.AnalyticMessage{
				Id:        util.GenUUID(),
				ShortCode: code,
				LongUrl:   longUrl,
				Type:      "redirect",
				Timestamp: time.Now().Unix(),
			}
			analyticQueue := os.Getenv("ANALYTIC_QUEUE")
			if err := rabbitmq.Publish(bgCtx, analyticQueue, analyticMessage, headers); err != nil {
				logger.Error("CannotPublishAnalytic", zap.String("code", code), zap.Error(err))
			}
		}
	}()

	return c.Redirect(longUrl, 302)
}

func metadataHandler(c *fiber.Ctx) error {
	ctx, span := tracer.StartSpan("MetadataHandler", shared.GetParentContext(c), trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	code := c.Params("code")
	meta, err := urlService.GetMetadata(ctx, code)
	if err != nil {
		logger.Info("CannotGetMetadata", zap.String("code", code), zap.Int("status", errStatus(err)), zap.Error(err))
		return c.Status(errStatus(err)).JSON(dto.ErrorResponseDto{Error: err.Error()})
	}

	return c.Status(200).JSON(dto.MetadataResponseDto{
		Url:       meta.LongUrl,
		ShortCode: meta.ShortCode,
		Clicks:    meta.Clicks,
		CreatedAt: meta.CreatedAt,
		ExpiresAt: meta.ExpiresAt,
	})
}

func metricsHandler(c *fiber.Ctx) error {
	body, err := metrics.GetPrometheusMetrics()
	if err != nil {
		return c.Status(500).SendString("Failed to collect metrics")
	}
	return c.Type("text/plain").SendString(body)
}

func healthHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := map[string]string{"store": "up", "cache": "up"}
	httpStatus := 200

	if err := linkRepo.DB.Ping(ctx); err != nil {
		status["store"] = "down"
		httpStatus = 503
	}
	if _, _, err := cacheBackend.Get(ctx, "health:probe"); err != nil {
		// cache loss only degrades, requests fall through to the store
		status["cache"] = "down"
	}

	return c.Status(httpStatus).JSON(status)
}

func onGratefulShutDown() {
	logger.Info("Shutting down...")
	clickFlusher.Stop()
	linkRepo.Close()
	if cacheClient != nil {
		cacheClient.Close()
	}
	if rabbitmq != nil {
		rabbitmq.Close()
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}

	shortenService := shared.NewHttpService("shorten", port, false)
	shortenService.Init()

	shortenService.Use(shared.ParentContextMiddleware)
	shortenService.Use(RequestCounterMiddleware)
	shortenService.Use(ResponseStatusCodeMiddleware)
	shortenService.Use(limiter.New(limiter.Config{
		Max:        rateLimitPerMinute(),
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
	}))

	shortenService.Routes("/url/create", createHandler, "POST")
	shortenService.Routes("/url/:code", metadataHandler, "GET")
	shortenService.Routes("/r/:code", redirectHandler, "GET")
	shortenService.Routes("/metrics", metricsHandler, "GET")
	shortenService.Routes("/health", healthHandler, "GET")

	clickFlusher.Start()

	shortenService.Start(onGratefulShutDown)
}
