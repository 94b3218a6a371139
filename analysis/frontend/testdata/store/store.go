package store

import (
	"errors"
	"fmt"
)

type Runnable interface {
	Run()
}

type Store struct {
	data  map[string]int
	count int
	name  string
}

var opened int

func (s *Store) Put(k string, v int) error {
	if s.count > 10 {
		return errors.New("full")
	}
	s.data[k] = v
	s.count++
	opened = s.count
	return nil
}

func (s *Store) Count() int { return s.count }

// fast is implemented in assembly
func (s *Store) fast() int

type Loop struct {
	Store
	stop chan bool
}

func (l *Loop) Run() {
	for {
		select {
		case <-l.stop:
			return
		default:
			l.Put("tick", l.count)
		}
	}
}

func (l *Loop) safe() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	l.Put("x", 1)
	return nil
}

func Start(l *Loop) {
	go l.Run()
}

type notFound struct {
	key string
}

func (e notFound) Error() string { return e.key }

func external() int
