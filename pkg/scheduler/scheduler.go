package scheduler

import (
	"github.com/brickingsoft/dio/pkg/request"
	"github.com/brickingsoft/errors"
)

const (
	DefaultPriorityBudget = 16
	DefaultReadBudget     = 8
	DefaultWriteBudget    = 8
)

var ErrInvalidBudget = errors.Define("invalid budget")

// Budgets is the number of requests each lane may give up per scheduling cycle.
type Budgets struct {
	Priority int `yaml:"priority"`
	Read     int `yaml:"read"`
	Write    int `yaml:"write"`
}

func DefaultBudgets() Budgets {
	return Budgets{
		Priority: DefaultPriorityBudget,
		Read:     DefaultReadBudget,
		Write:    DefaultWriteBudget,
	}
}

func (b Budgets) Validate() error {
	if b.Priority < 1 || b.Read < 1 || b.Write < 1 {
		return errors.New(
			"budgets must be positive",
			errors.WithMeta("pkg", "scheduler"),
			errors.WithWrap(ErrInvalidBudget),
		)
	}
	return nil
}

func New(budgets Budgets) (*Scheduler, error) {
	if err := budgets.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{}
	s.budgets[request.PriorityLane] = budgets.Priority
	s.budgets[request.ReadLane] = budgets.Read
	s.budgets[request.WriteLane] = budgets.Write
	for i := range s.lanes {
		s.lanes[i] = request.NewQueue()
	}
	return s, nil
}

type Scheduler struct {
	lanes      [request.Lanes]*request.Queue
	budgets    [request.Lanes]int
	writeFirst bool
}

// Enqueue is safe for concurrent use.
func (s *Scheduler) Enqueue(req *request.Request) {
	s.lanes[req.Lane].Enqueue(req)
}

// Drain appends at most quota requests to dst. It must only be called by the submitter.
//
// Each cycle takes up to the priority budget, then the read and write lanes in turn,
// each up to its own budget. The lane that goes first alternates between cycles.
// Cycles repeat until the quota is used or nothing more was taken.
func (s *Scheduler) Drain(quota int, dst []*request.Request) []*request.Request {
	for quota > 0 {
		var taken int
		dst, taken = s.take(request.PriorityLane, quota, dst)
		quota -= taken
		first, second := request.ReadLane, request.WriteLane
		if s.writeFirst {
			first, second = second, first
		}
		s.writeFirst = !s.writeFirst
		var n int
		dst, n = s.take(first, quota, dst)
		quota -= n
		taken += n
		dst, n = s.take(second, quota, dst)
		quota -= n
		taken += n
		if taken == 0 {
			break
		}
	}
	return dst
}

func (s *Scheduler) take(lane request.Lane, quota int, dst []*request.Request) ([]*request.Request, int) {
	limit := s.budgets[lane]
	if quota < limit {
		limit = quota
	}
	q := s.lanes[lane]
	n := 0
	for ; n < limit; n++ {
		req := q.Dequeue()
		if req == nil {
			break
		}
		dst = append(dst, req)
	}
	return dst, n
}

func (s *Scheduler) Len() int64 {
	var n int64
	for _, q := range s.lanes {
		n += q.Length()
	}
	return n
}

func (s *Scheduler) LaneLen(lane request.Lane) int64 {
	return s.lanes[lane].Length()
}
