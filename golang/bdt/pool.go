package bdt

import "sync"

//Task is a unit of work executed by a Pool.
type Task interface {
	Execute()
}

//Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

//NewPool starts workers goroutines.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	pool := &Pool{tasks: make(chan Task, workers)}
	pool.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer pool.wg.Done()
			for task := range pool.tasks {
				task.Execute()
			}
		}()
	}
	return pool
}

//AddTask queues a task; it blocks while every worker is busy and the queue is full.
func (pool *Pool) AddTask(task Task) {
	pool.tasks <- task
}

//Close stops accepting tasks; the workers exit after draining the queue.
func (pool *Pool) Close() {
	close(pool.tasks)
}

//WaitAll waits until every queued task has finished. Close must be called first.
func (pool *Pool) WaitAll() {
	pool.wg.Wait()
}

//TaskFindBestSplit scans one column and stores its best split at index.
type TaskFindBestSplit struct {
	result []BestSplit
	index  int
	scan   func(int) BestSplit
}

//Execute runs the scan.
func (task *TaskFindBestSplit) Execute() {
	task.result[task.index] = task.scan(task.index)
}
