// Пакет scheduler — реестр именованных периодических задач поверх cron.
//
// Имя задачи — уникальный ключ: повторный Add с тем же именем не
// выполняется, Reschedule всегда заменяет задачу. Перекрывающиеся
// запуски одной задачи не блокируются: тело задачи должно быть
// реентерабельным.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
)

// Job — тело задачи. ctx содержит run_id запуска (см. RunID).
type Job func(ctx context.Context)

// parser принимает 5 полей (минуты..дни недели), опционально секунды
// первым полем и дескрипторы вида @every 1h.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec проверяет cron-выражение.
func ValidateSpec(spec string) error {
	_, err := parser.Parse(spec)
	return err
}

// Scheduler — реестр задач.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	baseCtx context.Context
	logger  *slog.Logger
}

// New создаёт планировщик. Задачи начинают выполняться после Start.
func New(logger *slog.Logger) *Scheduler {
	logger = logger.With(slog.String("component", "scheduler"))
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cronLogger{logger: logger})),
		),
		entries: make(map[string]cron.EntryID),
		baseCtx: context.Background(),
		logger:  logger,
	}
}

// Add регистрирует задачу. Возвращает false, если задача с таким
// именем уже есть или выражение невалидно. Не паникует.
func (s *Scheduler) Add(name, spec string, job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(name, spec, job)
}

// Remove снимает задачу. Возвращает false, если задачи не было.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

// Clear снимает все задачи.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.entries {
		s.removeLocked(name)
	}
}

// Reschedule заменяет задачу name новыми параметрами независимо от того,
// была ли она зарегистрирована. Возвращает false только для невалидного
// выражения: в этом случае задача снята.
func (s *Scheduler) Reschedule(name, spec string, job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	return s.addLocked(name, spec, job)
}

// Has сообщает, зарегистрирована ли задача.
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[name]
	return ok
}

// Names возвращает имена зарегистрированных задач по алфавиту.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start запускает выполнение задач. ctx передаётся в тело задач
// и отменяется вызывающим кодом при завершении.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Планировщик запущен", slog.Any("jobs", s.Names()))
}

// Stop останавливает планировщик и ждёт завершения выполняющихся задач
// или отмены ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Планировщик остановлен")
	case <-ctx.Done():
		s.logger.Warn("Планировщик остановлен по таймауту, задачи ещё выполняются")
	}
}

func (s *Scheduler) addLocked(name, spec string, job Job) bool {
	if _, exists := s.entries[name]; exists {
		s.logger.Debug("Задача уже зарегистрирована", slog.String("job", name))
		return false
	}
	if job == nil {
		return false
	}

	sched, err := parser.Parse(spec)
	if err != nil {
		s.logger.Error("Невалидное cron-выражение",
			slog.String("job", name),
			slog.String("spec", spec),
			slog.String("error", err.Error()),
		)
		return false
	}

	id := s.cron.Schedule(sched, cron.FuncJob(func() { s.run(name, job) }))
	s.entries[name] = id
	s.logger.Debug("Задача зарегистрирована",
		slog.String("job", name),
		slog.String("spec", spec),
	)
	return true
}

func (s *Scheduler) removeLocked(name string) bool {
	id, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	return true
}

// run выполняет один запуск задачи с новым run_id.
func (s *Scheduler) run(name string, job Job) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	runID := ulid.Make().String()
	s.logger.Debug("Запуск задачи",
		slog.String("job", name),
		slog.String("run_id", runID),
	)
	job(WithRunID(ctx, runID))
}

type runIDKey struct{}

// WithRunID добавляет run_id в контекст.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID возвращает run_id запуска или пустую строку.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey{}).(string)
	return v
}

// cronLogger — адаптер cron.Logger поверх slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
