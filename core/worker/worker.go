package worker

import (
	"context"
	"fmt"
	"os"

	"calendar-sync/core/logger"

	"github.com/hibiken/asynq"
)

const QueueDefault = "default"

// Enqueuer schedules background tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

func (c Config) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg Config) *Client {
	return &Client{client: asynq.NewClient(cfg.redisOpt())}
}

func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		logger.Error("Worker:Enqueue:Error", "error", err, "type", task.Type())
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	logger.Info("Worker:Enqueue:Success", "type", task.Type(), "task_id", info.ID, "queue", info.Queue)
	return info, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Server runs registered task handlers until Shutdown.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewServer(cfg Config) *Server {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	srv := asynq.NewServer(cfg.redisOpt(), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
		Logger:      asynqLogger{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("Worker:Task:Error", "error", err, "type", task.Type())
		}),
	})
	return &Server{server: srv, mux: asynq.NewServeMux()}
}

func (s *Server) Handle(taskType string, handler asynq.Handler) {
	s.mux.Handle(taskType, handler)
}

// Start begins processing in the background.
func (s *Server) Start() error {
	return s.server.Start(s.mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

// exit is swapped in tests.
var exit = os.Exit

type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { logger.Debug(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...any)  { logger.Info(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...any)  { logger.Warn(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...any) { logger.Error(fmt.Sprint(args...)) }

// Fatal ends the process, as asynq expects of its logger.
func (asynqLogger) Fatal(args ...any) {
	logger.Error(fmt.Sprint(args...))
	logger.Sync()
	exit(1)
}
