package jobs

import (
	"github.com/oliverbestmann/stockpile/spoke"
)

// Each1 schedules fn to run for every entity with a component matching slot A.
func Each1[A spoke.Fetch](s *Scheduler, settings Settings, fn func(*A)) (*Handle, error) {
	query := Query{Types: []*spoke.ComponentType{spoke.TypeOf[A]()}}

	return s.Schedule(settings, query, func(view spoke.View, _ JobState) error {
		return spoke.ForEach1(view, spoke.All, fn)
	})
}

func Each2[A, B spoke.Fetch](s *Scheduler, settings Settings, fn func(*A, *B)) (*Handle, error) {
	query := Query{Types: []*spoke.ComponentType{spoke.TypeOf[A](), spoke.TypeOf[B]()}}

	return s.Schedule(settings, query, func(view spoke.View, _ JobState) error {
		return spoke.ForEach2(view, spoke.All, fn)
	})
}

func Each3[A, B, C spoke.Fetch](s *Scheduler, settings Settings, fn func(*A, *B, *C)) (*Handle, error) {
	query := Query{Types: []*spoke.ComponentType{spoke.TypeOf[A](), spoke.TypeOf[B](), spoke.TypeOf[C]()}}

	return s.Schedule(settings, query, func(view spoke.View, _ JobState) error {
		return spoke.ForEach3(view, spoke.All, fn)
	})
}

func Each4[A, B, C, D spoke.Fetch](s *Scheduler, settings Settings, fn func(*A, *B, *C, *D)) (*Handle, error) {
	query := Query{Types: []*spoke.ComponentType{spoke.TypeOf[A](), spoke.TypeOf[B](), spoke.TypeOf[C](), spoke.TypeOf[D]()}}

	return s.Schedule(settings, query, func(view spoke.View, _ JobState) error {
		return spoke.ForEach4(view, spoke.All, fn)
	})
}

// EachBatched2 schedules batched processing of each chunk, see spoke.Batched2.
func EachBatched2[A, B spoke.Fetch](s *Scheduler, settings Settings, batchSize int, batched func([]A, []B), basic func(*A, *B)) (*Handle, error) {
	query := Query{Types: []*spoke.ComponentType{spoke.TypeOf[A](), spoke.TypeOf[B]()}}

	return s.Schedule(settings, query, func(view spoke.View, _ JobState) error {
		spoke.Batched2(view, batchSize, batched, basic)
		return nil
	})
}
