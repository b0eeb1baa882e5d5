package anima

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boltdb/bolt"
	"github.com/gin-gonic/gin"

	"github.com/kiosk404/anima/internal/anima/config"
	"github.com/kiosk404/anima/internal/anima/service/emotion"
	"github.com/kiosk404/anima/internal/anima/service/event"
	"github.com/kiosk404/anima/internal/anima/service/intent"
	"github.com/kiosk404/anima/internal/anima/service/kernel"
	"github.com/kiosk404/anima/internal/anima/service/knowledge"
	"github.com/kiosk404/anima/internal/anima/service/llm"
	"github.com/kiosk404/anima/internal/anima/service/memory"
	"github.com/kiosk404/anima/internal/anima/service/plugin"
	"github.com/kiosk404/anima/internal/anima/service/prompt"
	"github.com/kiosk404/anima/internal/anima/service/schedule"
	"github.com/kiosk404/anima/internal/anima/service/store"
	"github.com/kiosk404/anima/internal/anima/service/taskgraph"
	"github.com/kiosk404/anima/internal/anima/service/world"
	"github.com/kiosk404/anima/pkg/logger"
)

type apiServer struct {
	cfg    *config.Config
	engine *gin.Engine

	store        *store.Store
	checkpointDB *bolt.DB

	kernel    *kernel.Kernel
	events    *event.Manager
	schedules *schedule.Engine
	worldM    *world.Model
	base      *knowledge.BaseKnowledge

	cancelWatch context.CancelFunc
}

type preparedAPIServer struct {
	*apiServer
}

func createAPIServer(cfg *config.Config) (*apiServer, error) {
	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	llmCfg := &llm.Config{Tiers: cfg.Models}
	llmModule, err := llmCfg.Complete().New(context.Background())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initialize LLM module: %w", err)
	}
	caller := llmModule.Router

	prompts := prompt.NewLibrary(cfg.PromptDir)
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	if err := prompts.Watch(watchCtx); err != nil {
		logger.Warn("prompt hot reload disabled: %v", err)
	}

	base := knowledge.NewBaseKnowledge(st)
	graph := knowledge.NewGraph(st, base, caller, knowledge.GraphConfig{})
	mem := memory.NewLayeredMemory(st, st, caller, graph.Sink(), memory.Config{
		MaxShortTermRounds:      cfg.Memory.MaxShortTermRounds,
		ExtractionInterval:      cfg.Memory.ExtractionInterval,
		ExpressionLearnInterval: cfg.Memory.ExpressionLearnInterval,
	})
	emo := emotion.NewAnalyzer(st, st, mem, caller, emotion.Config{
		FirstRounds: cfg.Memory.EmotionFirstRounds,
		Interval:    cfg.Memory.EmotionInterval,
	})
	classifier := intent.NewClassifier(caller)
	worldModel := world.NewModel(st, caller, classifier)
	scheduler := schedule.NewEngine(st, caller, classifier, schedule.CharacterInfo{
		Name:        cfg.Character.Name,
		Personality: cfg.Character.Personality,
		Hobbies:     cfg.Character.Hobbies,
	})
	registry := plugin.NewRegistry()
	invoker := plugin.NewInvoker(registry, caller)

	checkpointDB, err := bolt.Open(cfg.Store.CheckpointPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		cancelWatch()
		st.Close()
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	checkpointer, err := taskgraph.NewBoltCheckpointer(checkpointDB)
	if err != nil {
		cancelWatch()
		checkpointDB.Close()
		st.Close()
		return nil, err
	}
	tasks := taskgraph.NewEngine(caller, checkpointer)
	events := event.NewManager(st, caller, tasks)

	character := kernel.Character{
		Name:         cfg.Character.Name,
		Profile:      cfg.Character.Profile,
		WorldSetting: cfg.Character.World,
		Personality:  cfg.Character.Personality,
		Hobbies:      cfg.Character.Hobbies,
	}
	agent := kernel.New(kernel.Deps{
		LLM:       caller,
		Prompts:   prompts,
		Base:      base,
		Graph:     graph,
		Memory:    mem,
		Emotion:   emo,
		World:     worldModel,
		Schedules: scheduler,
		Intents:   classifier,
		Plugins:   invoker,
		Events:    events,
	}, character)

	gin.SetMode(gin.ReleaseMode)
	return &apiServer{
		cfg:          cfg,
		engine:       gin.New(),
		store:        st,
		checkpointDB: checkpointDB,
		kernel:       agent,
		events:       events,
		schedules:    scheduler,
		worldM:       worldModel,
		base:         base,
		cancelWatch:  cancelWatch,
	}, nil
}

func (s *apiServer) PrepareRun() preparedAPIServer {
	initRouter(s.engine, &routerDeps{
		kernel:    s.kernel,
		events:    s.events,
		schedules: s.schedules,
		world:     s.worldM,
		base:      s.base,
		healthz:   s.cfg.Server.Healthz,
		pprof:     s.cfg.Server.Pprof,
	})
	return preparedAPIServer{s}
}

// Run serves HTTP until SIGINT/SIGTERM, then shuts down gracefully.
func (s preparedAPIServer) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.BindAddress, s.cfg.Server.BindPort)
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("anima listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.close()
		return err
	case sig := <-quit:
		logger.Info("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	s.close()
	return err
}

func (s *apiServer) close() {
	s.cancelWatch()
	if err := s.checkpointDB.Close(); err != nil {
		logger.Warn("checkpoint db close failed: %v", err)
	}
	if err := s.store.Close(); err != nil {
		logger.Warn("store close failed: %v", err)
	}
}
