package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"watchparty-quiz/internal/app"
	"watchparty-quiz/internal/app/storetest"
	"watchparty-quiz/internal/domain"
	"watchparty-quiz/internal/infra/memory"
	pgnotify "watchparty-quiz/internal/infra/postgres"
	"watchparty-quiz/internal/infra/rabbitmq"
	infraredis "watchparty-quiz/internal/infra/redis"
	"watchparty-quiz/internal/infra/sqlstore"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestPostgresStoreContract(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	store, err := sqlstore.OpenPostgres(pgURL)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer store.Close()
	if _, err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storetest.Run(t, func(t *testing.T) app.Store {
		if _, err := store.DB().ExecContext(ctx,
			`TRUNCATE answers, questions, movie_votes, room_movies, room_members, rooms`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return store
	})
}

func TestRoomFlowOverPostgresAndRedis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	store, err := sqlstore.OpenPostgres(pgURL)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer store.Close()
	if _, err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	hub := memory.NewHub()
	notifier := infraredis.NewNotifier(redisClient, hub, infraredis.DefaultChannel, quietLog)
	if err := notifier.Start(ctx); err != nil {
		t.Fatalf("start notifier: %v", err)
	}
	service := app.NewService(store, notifier, infraredis.NewResultsCache(redisClient, time.Minute), app.Options{
		DefaultScoring: domain.ScoringFixed,
		Logger:         quietLog,
	})

	room, err := service.CreateRoom(ctx, "host", "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	events, unsubscribe := notifier.Subscribe(room.ID)
	defer unsubscribe()

	for _, p := range []string{"alice", "bob"} {
		if _, _, err := service.JoinRoom(ctx, room.Code, p, p); err != nil {
			t.Fatalf("join %s: %v", p, err)
		}
	}
	movie, err := service.ProposeMovie(ctx, room.ID, "host", "tmdb-949", "Heat")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := service.AcceptMovie(ctx, room.ID, movie.ID, "host"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := service.StartQuiz(ctx, room.ID, "host", domain.ScoringFixed); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := service.CreateQuestion(ctx, room.ID, "host", domain.QuestionDraft{
		Text: "Who directed Heat?", Options: []string{"Mann", "Scott"}, CorrectIndex: 0, DurationSeconds: 20,
	}); err != nil {
		t.Fatalf("create question: %v", err)
	}
	questions, err := service.PublishQuestions(ctx, room.ID, "host")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Warm the cache, then make sure an answer is visible right after.
	if _, err := service.Results(ctx, room.ID); err != nil {
		t.Fatalf("results: %v", err)
	}
	receipt, err := service.SubmitAnswer(ctx, questions[0].ID, "bob", 0, 12)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !receipt.Correct || receipt.Score != 100 {
		t.Fatalf("expected 100 points for a correct fixed answer, got %+v", receipt)
	}
	if _, err := service.SubmitAnswer(ctx, questions[0].ID, "bob", 1, 12); domain.KindOf(err) != domain.KindAlreadyAnswered {
		t.Fatalf("expected already answered, got %v", err)
	}
	results, err := service.Results(ctx, room.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results.Scores) != 2 || results.Scores[0].UserID != "bob" || results.Scores[0].Score != 100 {
		t.Fatalf("expected bob leading with 100, got %+v", results.Scores)
	}

	waitForTopic(t, events, domain.TopicQuizResults)
}

func TestPostgresNotifierRelaysAcrossConnections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	listener := pgnotify.NewNotifier(pool, memory.NewHub(), pgnotify.DefaultChannel, quietLog)
	if err := listener.Start(ctx); err != nil {
		t.Fatalf("start listener: %v", err)
	}
	events, unsubscribe := listener.Subscribe("room-1")
	defer unsubscribe()

	publisher := pgnotify.NewNotifier(pool, memory.NewHub(), pgnotify.DefaultChannel, quietLog)
	if err := publisher.Invalidate(ctx, "room-1", domain.TopicRoomMembers); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	waitForTopic(t, events, domain.TopicRoomMembers)
}

func TestRabbitMQNotifierRelaysBetweenInstances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	requireDocker(t)

	amqpURL, mqCleanup := startRabbitMQ(t, ctx)
	defer mqCleanup()

	listener, err := rabbitmq.Dial(amqpURL, rabbitmq.DefaultExchange, memory.NewHub(), quietLog)
	if err != nil {
		t.Fatalf("dial listener: %v", err)
	}
	defer listener.Close()
	if err := listener.Start(ctx); err != nil {
		t.Fatalf("start listener: %v", err)
	}
	events, unsubscribe := listener.Subscribe("room-1")
	defer unsubscribe()
	other, unsubscribeOther := listener.Subscribe("room-2")
	defer unsubscribeOther()

	publisher, err := rabbitmq.Dial(amqpURL, rabbitmq.DefaultExchange, memory.NewHub(), quietLog)
	if err != nil {
		t.Fatalf("dial publisher: %v", err)
	}
	defer publisher.Close()
	if err := publisher.Invalidate(ctx, "room-1", domain.TopicQuizResults); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	waitForTopic(t, events, domain.TopicQuizResults)

	select {
	case inv := <-other:
		t.Fatalf("room-2 received another room's invalidation: %+v", inv)
	default:
	}
}

func startRabbitMQ(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start rabbitmq: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("rabbitmq host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5672/tcp")
	if err != nil {
		t.Fatalf("rabbitmq port: %v", err)
	}
	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
	return url, func() {
		_ = container.Terminate(context.Background())
	}
}

func waitForTopic(t *testing.T, events <-chan domain.Invalidation, topic domain.Topic) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case inv := <-events:
			if inv.Topic == topic {
				return
			}
		case <-timeout:
			t.Fatalf("no %s invalidation received", topic)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "party", "POSTGRES_PASSWORD": "partypass", "POSTGRES_DB": "watchparty"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://party:partypass@%s:%s/watchparty?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(context.Background())
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(context.Background())
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
