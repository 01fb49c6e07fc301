package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

type factoryWithPriority[F any] struct {
	Priority int
	Factory  F
}

type priorityRegistry[F any] struct {
	locker    sync.Mutex
	factories map[reflect.Type]factoryWithPriority[F]
}

func newPriorityRegistry[F any]() *priorityRegistry[F] {
	return &priorityRegistry[F]{
		factories: map[reflect.Type]factoryWithPriority[F]{},
	}
}

func (r *priorityRegistry[F]) register(kind string, priority int, factory F) {
	t := reflect.ValueOf(factory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if _, ok := r.factories[t]; ok {
		panic(fmt.Errorf("there is already registered a factory of %s of type %v", kind, t))
	}
	r.factories[t] = factoryWithPriority[F]{
		Priority: priority,
		Factory:  factory,
	}
}

// list returns the factories ordered by priority, the highest first.
// Factories of equal priority are ordered by type name to keep the order stable.
func (r *priorityRegistry[F]) list() []F {
	r.locker.Lock()
	type item struct {
		name string
		factoryWithPriority[F]
	}
	items := make([]item, 0, len(r.factories))
	for t, factory := range r.factories {
		items = append(items, item{name: t.String(), factoryWithPriority: factory})
	}
	r.locker.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].name < items[j].name
	})

	result := make([]F, 0, len(items))
	for _, item := range items {
		result = append(result, item.Factory)
	}
	return result
}
