package worker

import "fmt"

type Worker struct {
	n    int
	jobs chan int
	quit chan bool
}

func (w *Worker) Run() {
	for {
		job, ok := <-w.jobs
		if !ok {
			return // @Point(1)
		}
		switch {
		case job > w.n:
			w.n = job // @Point(2)
		default: // @Point(3)
			fmt.Println("small")
		}
	}
}

func (w *Worker) Wait() {
	select {
	case <-w.quit: // @Point(1)
		fmt.Println("quit")
	case job := <-w.jobs:
		w.n = job
	}
	func() {
		w.n = 0 // @Point(2)
	}()
}

func (Worker) Size() int {
	return 0
}

func (w *Worker) Consume() {
	for job := range w.jobs {
		w.n += job
	}
}

func (w *Worker) Drain() {
	for {
		select {
		case <-w.quit:
			goto done
		case job := <-w.jobs:
			w.n += job
		}
	}
done:
	return // @Point(1)
}
