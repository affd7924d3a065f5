package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"outlands.gg/internal/events"
	"outlands.gg/internal/guard"
	"outlands.gg/internal/persistence/indexdb"
	persistlog "outlands.gg/internal/persistence/log"
	"outlands.gg/internal/policy"
	"outlands.gg/internal/protocol"
	"outlands.gg/internal/registry"
	"outlands.gg/internal/trust"
	"outlands.gg/internal/waypoints"
)

// Thin operator surface: trust mutations, registry seeding, waypoint
// management, and death injection for the gameplay layer in front.

type adminDeps struct {
	logger   *log.Logger
	ledger   *trust.Ledger
	owners   *registry.Ownership
	clans    *registry.Clans
	wanted   *registry.WantedList
	store    *waypoints.Store
	bus      *events.Bus
	trustLog *persistlog.TrustLogger
	index    *indexdb.Index
}

type regionRef struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

func (r regionRef) key() trust.RegionKey { return trust.RegionKey{X: r.X, Z: r.Z} }

type trustReq struct {
	Actor   string    `json:"actor"`
	Region  regionRef `json:"region"`
	Trustee string    `json:"trustee"`
}

type deathReq struct {
	Victim string    `json:"victim"`
	Killer string    `json:"killer,omitempty"`
	X      int32     `json:"x"`
	Y      int32     `json:"y"`
	Z      int32     `json:"z"`
	Region regionRef `json:"region"`
}

func registerAdminHandlers(mux *http.ServeMux, d adminDeps) {
	mux.HandleFunc("/v1/trust/grant", d.trustMutation("grant"))
	mux.HandleFunc("/v1/trust/revoke", d.trustMutation("revoke"))
	mux.HandleFunc("/v1/events/death", d.death)
	mux.HandleFunc("/v1/waypoints", d.putWaypoint)
	mux.HandleFunc("/v1/registry/region", d.putRegion)
	mux.HandleFunc("/v1/registry/clan", d.putClan)
	mux.HandleFunc("/v1/registry/wanted", d.putWanted)
}

func (d adminDeps) trustMutation(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var req trustReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		actor, err := uuid.Parse(req.Actor)
		if err != nil {
			http.Error(w, "bad actor id", http.StatusBadRequest)
			return
		}
		trustee, err := uuid.Parse(req.Trustee)
		if err != nil {
			http.Error(w, "bad trustee id", http.StatusBadRequest)
			return
		}
		region := req.Region.key()

		allowed := guard.RunValue(d.logger, "trust."+op, false, func() (bool, error) {
			if op == "grant" {
				return d.ledger.Grant(actor, region, trustee), nil
			}
			return d.ledger.Revoke(actor, region, trustee), nil
		})

		if d.trustLog != nil {
			d.trustLog.RecordMutation(persistlog.TrustMutationEntry{
				Time: time.Now().UTC(), Op: op, Region: region.String(),
				Actor: req.Actor, Trustee: req.Trustee, Allowed: allowed,
			})
		}
		if d.index != nil {
			d.index.RecordTrustMutation(op, region.String(), req.Actor, req.Trustee, allowed)
		}
		writeJSON(w, map[string]any{"allowed": allowed})
	}
}

func (d adminDeps) death(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req deathReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	victim, err := uuid.Parse(req.Victim)
	if err != nil {
		http.Error(w, "bad victim id", http.StatusBadRequest)
		return
	}
	ev := policy.DeathEvent{
		Victim: victim,
		X:      req.X, Y: req.Y, Z: req.Z,
		Region: req.Region.key(),
	}
	if req.Killer != "" {
		killer, err := uuid.Parse(req.Killer)
		if err != nil {
			http.Error(w, "bad killer id", http.StatusBadRequest)
			return
		}
		ev.Killer = killer
	}
	d.bus.PublishDeath(ev)
	writeJSON(w, map[string]any{"dispatched": true})
}

func (d adminDeps) putWaypoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Name       string   `json:"name"`
		X          int32    `json:"x"`
		Y          int32    `json:"y"`
		Z          int32    `json:"z"`
		Dimension  string   `json:"dimension"`
		Kind       string   `json:"kind"`
		Visibility string   `json:"visibility"`
		Owner      string   `json:"owner"`
		SharedWith []string `json:"shared_with,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	owner, err := uuid.Parse(req.Owner)
	if err != nil {
		http.Error(w, "bad owner id", http.StatusBadRequest)
		return
	}
	entry := protocol.WaypointEntry{
		Name: req.Name,
		X:    req.X, Y: req.Y, Z: req.Z,
		Dimension:  req.Dimension,
		Kind:       req.Kind,
		Visibility: req.Visibility,
		Owner:      owner,
	}
	for _, s := range req.SharedWith {
		p, err := uuid.Parse(s)
		if err != nil {
			http.Error(w, "bad shared id", http.StatusBadRequest)
			return
		}
		entry.SharedWith = append(entry.SharedWith, p)
	}
	d.store.Put(entry)
	writeJSON(w, map[string]any{"stored": true})
}

// putRegion seeds the ownership source: owner plus optional PVP flag. The
// flag is tri-state on purpose; omitting it leaves PVP unset.
func (d adminDeps) putRegion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Region regionRef `json:"region"`
		Owner  string    `json:"owner"`
		PVP    *bool     `json:"pvp,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	owner, err := uuid.Parse(req.Owner)
	if err != nil {
		http.Error(w, "bad owner id", http.StatusBadRequest)
		return
	}
	d.owners.SetOwner(req.Region.key(), owner)
	if req.PVP != nil {
		d.owners.SetFlag(req.Region.key(), policy.PermPVP, *req.PVP)
	}
	writeJSON(w, map[string]any{"stored": true})
}

func (d adminDeps) putClan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Player string `json:"player"`
		Clan   string `json:"clan"` // empty leaves the clan
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	player, err := uuid.Parse(req.Player)
	if err != nil {
		http.Error(w, "bad player id", http.StatusBadRequest)
		return
	}
	d.clans.Join(player, req.Clan)
	writeJSON(w, map[string]any{"stored": true})
}

func (d adminDeps) putWanted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Player    string `json:"player"`
		Reason    string `json:"reason"`
		Magnitude int    `json:"magnitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	player, err := uuid.Parse(req.Player)
	if err != nil {
		http.Error(w, "bad player id", http.StatusBadRequest)
		return
	}
	if err := d.wanted.AddWanted(player, req.Reason, req.Magnitude); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"stored": true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
