package anima

import (
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	v1 "github.com/kiosk404/anima/internal/anima/handler/v1"
	"github.com/kiosk404/anima/internal/anima/service/event"
	"github.com/kiosk404/anima/internal/anima/service/kernel"
	"github.com/kiosk404/anima/internal/anima/service/knowledge"
	"github.com/kiosk404/anima/internal/anima/service/schedule"
	"github.com/kiosk404/anima/internal/anima/service/world"
)

// routerDeps holds the dependencies needed for route registration.
type routerDeps struct {
	kernel    *kernel.Kernel
	events    *event.Manager
	schedules *schedule.Engine
	world     *world.Model
	base      *knowledge.BaseKnowledge

	healthz bool
	pprof   bool
}

func initRouter(g *gin.Engine, deps *routerDeps) {
	installMiddleware(g, deps)
	installController(g, deps)
}

func installMiddleware(g *gin.Engine, deps *routerDeps) {
	g.Use(gin.Recovery())

	if deps.healthz {
		g.GET("/healthz", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})
	}
	if deps.pprof {
		pprof.Register(g)
	}
}

func installController(g *gin.Engine, deps *routerDeps) {
	chatHandler := v1.NewChatHandler(deps.kernel)
	eventHandler := v1.NewEventHandler(deps.kernel, deps.events)
	scheduleHandler := v1.NewScheduleHandler(deps.schedules)
	worldHandler := v1.NewWorldHandler(deps.world)
	knowledgeHandler := v1.NewKnowledgeHandler(deps.base)

	apiV1 := g.Group("/v1")
	{
		apiV1.POST("/chat", chatHandler.Chat)

		apiV1.POST("/events", eventHandler.Create)
		apiV1.GET("/events", eventHandler.List)
		apiV1.GET("/events/:id", eventHandler.Get)
		apiV1.POST("/events/:id/handle", eventHandler.Handle)
		apiV1.POST("/events/:id/complete", eventHandler.Complete)

		apiV1.POST("/schedules", scheduleHandler.Create)
		apiV1.GET("/schedules", scheduleHandler.InRange)
		apiV1.GET("/schedules/free-slots", scheduleHandler.FreeSlots)
		apiV1.POST("/schedules/:id/confirm", scheduleHandler.Confirm)
		apiV1.DELETE("/schedules/:id", scheduleHandler.Delete)

		apiV1.GET("/environments/active", worldHandler.Active)
		apiV1.POST("/environments/:id/activate", worldHandler.Switch)

		apiV1.POST("/knowledge/base-facts", knowledgeHandler.AddFact)
		apiV1.GET("/knowledge/base-facts", knowledgeHandler.ListFacts)
	}
}
