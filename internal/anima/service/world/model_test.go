package world

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/intent"
	"github.com/kiosk404/anima/internal/anima/service/llm"
)

type scriptedCaller struct {
	fn    func(prompt string, tier llm.Tier) (string, error)
	tiers []llm.Tier
}

func (s *scriptedCaller) Chat(_ context.Context, msgs []*schema.Message, tier llm.Tier) (string, error) {
	s.tiers = append(s.tiers, tier)
	return s.fn(msgs[len(msgs)-1].Content, tier)
}

func (s *scriptedCaller) sawTier(tier llm.Tier) bool {
	for _, t := range s.tiers {
		if t == tier {
			return true
		}
	}
	return false
}

type memWorldRepo struct {
	envs        []*Environment
	domains     []*Domain
	links       map[string][]string // domain uuid -> env uuids
	activeReads int
	seq         int
}

func newMemWorldRepo() *memWorldRepo {
	return &memWorldRepo{links: make(map[string][]string)}
}

func (r *memWorldRepo) InsertEnvironment(_ context.Context, env *Environment) error {
	r.seq++
	if env.UUID == "" {
		env.UUID = fmt.Sprintf("env-%d", r.seq)
	}
	cp := *env
	r.envs = append(r.envs, &cp)
	return nil
}

func (r *memWorldRepo) GetEnvironment(_ context.Context, uuid string) (*Environment, error) {
	for _, env := range r.envs {
		if env.UUID == uuid {
			return env, nil
		}
	}
	return nil, fmt.Errorf("%w: environment %s", errno.ErrNotFound, uuid)
}

func (r *memWorldRepo) GetEnvironmentByName(_ context.Context, name string) (*Environment, error) {
	for _, env := range r.envs {
		if strings.EqualFold(env.Name, name) {
			return env, nil
		}
	}
	return nil, fmt.Errorf("%w: environment %q", errno.ErrNotFound, name)
}

func (r *memWorldRepo) ListEnvironments(_ context.Context) ([]*Environment, error) {
	return r.envs, nil
}

func (r *memWorldRepo) ActiveEnvironment(_ context.Context) (*Environment, error) {
	r.activeReads++
	for _, env := range r.envs {
		if env.IsActive {
			return env, nil
		}
	}
	return nil, fmt.Errorf("%w: no active environment", errno.ErrNotFound)
}

func (r *memWorldRepo) ActivateEnvironment(_ context.Context, uuid string) error {
	var target *Environment
	for _, env := range r.envs {
		if env.UUID == uuid {
			target = env
		}
	}
	if target == nil {
		return fmt.Errorf("%w: environment %s", errno.ErrNotFound, uuid)
	}
	for _, env := range r.envs {
		env.IsActive = false
	}
	target.IsActive = true
	return nil
}

func (r *memWorldRepo) InsertDomain(_ context.Context, dom *Domain) error {
	r.seq++
	if dom.UUID == "" {
		dom.UUID = fmt.Sprintf("dom-%d", r.seq)
	}
	cp := *dom
	r.domains = append(r.domains, &cp)
	return nil
}

func (r *memWorldRepo) GetDomainByName(_ context.Context, name string) (*Domain, error) {
	for _, dom := range r.domains {
		if strings.EqualFold(dom.Name, name) {
			return dom, nil
		}
	}
	return nil, fmt.Errorf("%w: domain %q", errno.ErrNotFound, name)
}

func (r *memWorldRepo) ListDomains(_ context.Context) ([]*Domain, error) {
	return r.domains, nil
}

func (r *memWorldRepo) LinkDomainEnvironment(_ context.Context, domainUUID, envUUID string) error {
	r.links[domainUUID] = append(r.links[domainUUID], envUUID)
	return nil
}

func (r *memWorldRepo) DomainOfEnvironment(_ context.Context, envUUID string) (*Domain, error) {
	for _, dom := range r.domains {
		for _, member := range r.links[dom.UUID] {
			if member == envUUID {
				return dom, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no domain for %s", errno.ErrNotFound, envUUID)
}

func (r *memWorldRepo) EnvironmentsInDomain(ctx context.Context, domainUUID string) ([]*Environment, error) {
	var out []*Environment
	for _, member := range r.links[domainUUID] {
		if env, err := r.GetEnvironment(ctx, member); err == nil {
			out = append(out, env)
		}
	}
	return out, nil
}

func replyWith(reply string) func(string, llm.Tier) (string, error) {
	return func(string, llm.Tier) (string, error) { return reply, nil }
}

func failAll(string, llm.Tier) (string, error) {
	return "", fmt.Errorf("%w: down", errno.ErrUpstream)
}

func seedWorld(t *testing.T) *memWorldRepo {
	t.Helper()
	repo := newMemWorldRepo()
	ctx := context.Background()
	require.NoError(t, repo.InsertEnvironment(ctx, &Environment{
		Name: "the bookshop", OverallDescription: "a cramped shop full of old paper",
		Atmosphere: "quiet and dusty", Lighting: "lamplight", IsActive: true,
	}))
	require.NoError(t, repo.InsertEnvironment(ctx, &Environment{
		Name: "the beach", OverallDescription: "a pale stretch of sand",
		Atmosphere: "windy", Sounds: "gulls overhead",
	}))
	return repo
}

func TestActiveEnvironmentReadsThroughCache(t *testing.T) {
	repo := seedWorld(t)
	model := NewModel(repo, &scriptedCaller{fn: failAll}, nil)
	ctx := context.Background()

	env, err := model.ActiveEnvironment(ctx)
	require.NoError(t, err)
	assert.Equal(t, "the bookshop", env.Name)

	_, err = model.ActiveEnvironment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.activeReads)
}

func TestSwitchInvalidatesCache(t *testing.T) {
	repo := seedWorld(t)
	model := NewModel(repo, &scriptedCaller{fn: failAll}, nil)
	ctx := context.Background()

	_, err := model.ActiveEnvironment(ctx)
	require.NoError(t, err)

	beach, err := repo.GetEnvironmentByName(ctx, "the beach")
	require.NoError(t, err)
	require.NoError(t, model.Switch(ctx, beach.UUID))

	env, err := model.ActiveEnvironment(ctx)
	require.NoError(t, err)
	assert.Equal(t, "the beach", env.Name)

	err = model.Switch(ctx, "no-such-env")
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestDetectSwitchIntentConfirmsEnvironmentMention(t *testing.T) {
	repo := seedWorld(t)
	caller := &scriptedCaller{fn: replyWith(`{"can_switch": true}`)}
	model := NewModel(repo, caller, nil)

	sw, err := model.DetectSwitchIntent(context.Background(), "let's walk down to the beach")
	require.NoError(t, err)
	assert.True(t, sw.CanSwitch)
	assert.Equal(t, "the bookshop", sw.FromEnv)
	assert.Equal(t, "the beach", sw.ToEnv)
	assert.NotEmpty(t, sw.ToEnvUUID)
	assert.True(t, caller.sawTier(llm.TierTool))
}

func TestDetectSwitchIntentIgnoresUnknownPlaces(t *testing.T) {
	repo := seedWorld(t)
	caller := &scriptedCaller{fn: replyWith(`{"can_switch": true}`)}
	model := NewModel(repo, caller, nil)

	sw, err := model.DetectSwitchIntent(context.Background(), "tell me a story")
	require.NoError(t, err)
	assert.False(t, sw.CanSwitch)
	assert.Empty(t, sw.ToEnvUUID)
	assert.Empty(t, caller.tiers)
}

func TestDetectSwitchIntentDegradesOnUpstreamFailure(t *testing.T) {
	repo := seedWorld(t)
	model := NewModel(repo, &scriptedCaller{fn: failAll}, nil)

	sw, err := model.DetectSwitchIntent(context.Background(), "let's go to the beach")
	require.NoError(t, err)
	assert.False(t, sw.CanSwitch)
	assert.Equal(t, "the beach", sw.ToEnv)
}

func TestDetectSwitchIntentResolvesDomainDefault(t *testing.T) {
	repo := seedWorld(t)
	ctx := context.Background()
	beach, err := repo.GetEnvironmentByName(ctx, "the beach")
	require.NoError(t, err)
	require.NoError(t, repo.InsertDomain(ctx, &Domain{
		Name: "Seaside", Description: "the coast below the cliffs",
		DefaultEnvironmentUUID: beach.UUID,
	}))

	caller := &scriptedCaller{fn: replyWith(`{"can_switch": true}`)}
	model := NewModel(repo, caller, nil)

	sw, err := model.DetectSwitchIntent(ctx, "take me out to the seaside")
	require.NoError(t, err)
	assert.True(t, sw.CanSwitch)
	assert.Equal(t, "Seaside", sw.ToEnv)
	assert.Equal(t, beach.UUID, sw.ToEnvUUID)
}

func TestVisionContextNilWithoutPerceptionWords(t *testing.T) {
	repo := seedWorld(t)
	model := NewModel(repo, &scriptedCaller{fn: failAll}, nil)

	vc, err := model.VisionContext(context.Background(), "how was your day")
	require.NoError(t, err)
	assert.Nil(t, vc)
}

func TestVisionNarrationUsesVisionTier(t *testing.T) {
	repo := seedWorld(t)
	caller := &scriptedCaller{fn: func(_ string, tier llm.Tier) (string, error) {
		if tier == llm.TierVision {
			return "Shelves lean over me, heavy with old paper.", nil
		}
		return "", fmt.Errorf("%w: unexpected tier", errno.ErrUpstream)
	}}
	model := NewModel(repo, caller, nil)

	vc, err := model.VisionContext(context.Background(), "look around, what do you see?")
	require.NoError(t, err)
	require.NotNil(t, vc)
	assert.Equal(t, "Shelves lean over me, heavy with old paper.", vc.Narration)
	assert.Equal(t, 2, vc.ObjectCount)
	assert.True(t, caller.sawTier(llm.TierVision))
}

func TestVisionNarrationFallsBackToComposedText(t *testing.T) {
	repo := seedWorld(t)
	model := NewModel(repo, &scriptedCaller{fn: failAll}, nil)

	vc, err := model.VisionContext(context.Background(), "describe the surroundings")
	require.NoError(t, err)
	require.NotNil(t, vc)
	assert.Contains(t, vc.Narration, "the bookshop")
	assert.Contains(t, vc.Narration, "quiet and dusty")
}

func TestVisionLowPrecisionUsesDomainOverview(t *testing.T) {
	repo := seedWorld(t)
	ctx := context.Background()
	shop, err := repo.GetEnvironmentByName(ctx, "the bookshop")
	require.NoError(t, err)
	dom := &Domain{Name: "Old Town", Description: "crooked streets above the harbour"}
	require.NoError(t, repo.InsertDomain(ctx, dom))
	require.NoError(t, repo.LinkDomainEnvironment(ctx, dom.UUID, shop.UUID))

	caller := &scriptedCaller{fn: func(prompt string, tier llm.Tier) (string, error) {
		if tier == llm.TierTool && strings.Contains(prompt, "high_precision") {
			return `{"high_precision": false}`, nil
		}
		return "", fmt.Errorf("%w: down", errno.ErrUpstream)
	}}
	model := NewModel(repo, caller, intent.NewClassifier(caller))

	vc, err := model.VisionContext(ctx, "look around")
	require.NoError(t, err)
	require.NotNil(t, vc)
	require.NotNil(t, vc.Domain)
	assert.Equal(t, "Old Town", vc.Domain.Name)
	assert.Contains(t, vc.Narration, "part of Old Town")
}
