package services

import "github.com/closedroom/portal/internal/models"

// LockState is the gate's verdict for one content item.
type LockState int

const (
	// LockFree means the item costs nothing and bypasses the transaction.
	LockFree LockState = iota
	// LockOwned means the user already holds a permanent entitlement.
	LockOwned
	// LockLocked means an unlock at Decision.Price is required.
	LockLocked
)

// Decision is a gate verdict plus the applicable price when locked.
type Decision struct {
	State LockState
	Price int
}

// ContentGate decides whether an item is free, owned, or locked for the
// session's user. The gate must run before any unlock is offered: an owned
// item never reaches UnlockService.
type ContentGate struct {
	entitlements *EntitlementStore
}

func NewContentGate(ents *EntitlementStore) *ContentGate {
	return &ContentGate{entitlements: ents}
}

// Evaluate applies the shared policy: free when the price is zero, owned
// when entitled, locked at the given price otherwise.
func (g *ContentGate) Evaluate(kind models.ContentKind, id string, price int) Decision {
	if price == 0 {
		return Decision{State: LockFree}
	}
	if g.entitlements.IsOwned(kind, id) {
		return Decision{State: LockOwned}
	}
	return Decision{State: LockLocked, Price: price}
}

// Article gates a single article at its token price.
func (g *ContentGate) Article(a *models.Article) Decision {
	return g.Evaluate(models.KindArticle, a.ID, a.ArticleToken)
}

// Survey gates a survey; the scoring engine is reachable only once the
// verdict is free or owned.
func (g *ContentGate) Survey(sv *models.Survey) Decision {
	return g.Evaluate(models.KindSurvey, sv.ID, sv.SurveyToken)
}

// Drama gates a full-series unlock.
func (g *ContentGate) Drama(d *models.Drama) Decision {
	return g.Evaluate(models.KindDrama, d.ID, d.DramaToken)
}

// Episode gates one episode. Episodes 1..FreeEpisodes are free by index
// membership; owning the whole drama also unlocks every episode.
func (g *ContentGate) Episode(d *models.Drama, episode int) Decision {
	if episode >= 1 && episode <= d.FreeEpisodes {
		return Decision{State: LockFree}
	}
	if g.entitlements.IsOwned(models.KindDrama, d.ID) {
		return Decision{State: LockOwned}
	}
	return g.Evaluate(models.KindEpisode, models.EpisodeID(d.ID, episode), d.EpisodeToken)
}
