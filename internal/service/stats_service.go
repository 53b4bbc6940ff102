package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RevenueCalculator prices a single attendance row.
type RevenueCalculator interface {
	CalculateRevenue(a *model.Attendance) float64
}

// StatusCounts splits attendance rows by outcome.
type StatusCounts struct {
	Visited   int `json:"visited"`
	Cancelled int `json:"cancelled"`
	NoShow    int `json:"no_show"`
}

// AttendanceSummary embeds the overall counts next to the per-type split.
type AttendanceSummary struct {
	StatusCounts
	Total          int                                   `json:"total"`
	ByType         map[model.AttendanceType]StatusCounts `json:"by_type"`
	AttendanceRate float64                               `json:"attendance_rate"`
	Revenue        float64                               `json:"revenue"`
}

type ClientStats struct {
	ClientID uuid.UUID `json:"client_id"`
	AttendanceSummary
}

type StudioStats struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	UniqueClients int       `json:"unique_clients"`
	AttendanceSummary
}

type ClientRanking struct {
	Rank     int       `json:"rank"`
	ClientID uuid.UUID `json:"client_id"`
	Name     string    `json:"name"`
	Visits   int       `json:"visits"`
}

type StatsService struct {
	store   repository.Store
	revenue RevenueCalculator
	logger  *zap.Logger
}

// NewStatsService returns a StatsService pricing rows with revenue.
func NewStatsService(store repository.Store, revenue RevenueCalculator, logger *zap.Logger) *StatsService {
	return &StatsService{
		store:   store,
		revenue: revenue,
		logger:  logger,
	}
}

// ClientStats aggregates the attendance history of a client.
func (s *StatsService) ClientStats(ctx context.Context, clientID uuid.UUID) (*ClientStats, error) {
	rows, err := s.store.Attendance().ListByClientID(ctx, clientID)
	if err != nil {
		return nil, tagStorage("list client attendance", err)
	}
	return &ClientStats{
		ClientID:          clientID,
		AttendanceSummary: s.summarize(rows),
	}, nil
}

// StudioStats aggregates attendance scheduled in [from, to). A zero bound is open.
func (s *StatsService) StudioStats(ctx context.Context, from, to time.Time) (*StudioStats, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, fmt.Errorf("%w: empty period [%s, %s)", model.ErrValidation, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	rows, err := s.store.Attendance().List(ctx, repository.AttendanceFilter{From: from, To: to})
	if err != nil {
		return nil, tagStorage("list attendance", err)
	}

	clients := make(map[uuid.UUID]struct{}, len(rows))
	for _, a := range rows {
		clients[a.ClientID] = struct{}{}
	}

	return &StudioStats{
		From:              from,
		To:                to,
		UniqueClients:     len(clients),
		AttendanceSummary: s.summarize(rows),
	}, nil
}

// TopClients ranks clients by visits. Ties go to the name, then the ID.
func (s *StatsService) TopClients(ctx context.Context, n int) ([]ClientRanking, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: top clients limit must be positive, got %d", model.ErrValidation, n)
	}

	rows, err := s.store.Attendance().List(ctx, repository.AttendanceFilter{})
	if err != nil {
		return nil, tagStorage("list attendance", err)
	}

	visits := make(map[uuid.UUID]int)
	for _, a := range rows {
		if a.Status == model.AttendanceStatusVisited {
			visits[a.ClientID]++
		}
	}
	if len(visits) == 0 {
		return []ClientRanking{}, nil
	}

	ids := make([]uuid.UUID, 0, len(visits))
	for id := range visits {
		ids = append(ids, id)
	}
	clients, err := s.store.Clients().GetByIDs(ctx, ids)
	if err != nil {
		return nil, tagStorage("get clients", err)
	}

	ranking := make([]ClientRanking, 0, len(ids))
	for _, id := range ids {
		r := ClientRanking{ClientID: id, Visits: visits[id]}
		if c, ok := clients[id]; ok {
			r.Name = c.Name
		}
		ranking = append(ranking, r)
	}

	sort.Slice(ranking, func(i, j int) bool {
		a, b := ranking[i], ranking[j]
		if a.Visits != b.Visits {
			return a.Visits > b.Visits
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ClientID.String() < b.ClientID.String()
	})

	if len(ranking) > n {
		ranking = ranking[:n]
	}
	for i := range ranking {
		ranking[i].Rank = i + 1
	}
	return ranking, nil
}

func (s *StatsService) summarize(rows []*model.Attendance) AttendanceSummary {
	sum := AttendanceSummary{
		Total:  len(rows),
		ByType: make(map[model.AttendanceType]StatusCounts),
	}

	var revenue float64
	for _, a := range rows {
		byType := sum.ByType[a.Type]
		switch a.Status {
		case model.AttendanceStatusVisited:
			sum.Visited++
			byType.Visited++
		case model.AttendanceStatusCancelled:
			sum.Cancelled++
			byType.Cancelled++
		case model.AttendanceStatusNoShow:
			sum.NoShow++
			byType.NoShow++
		}
		sum.ByType[a.Type] = byType
		revenue += s.revenue.CalculateRevenue(a)
	}

	if sum.Total > 0 {
		sum.AttendanceRate = float64(sum.Visited) / float64(sum.Total) * 100
	}
	sum.Revenue = model.RoundMoney(revenue)
	return sum
}
