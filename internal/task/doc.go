// Package task manages background job dispatch and processing: the
// priority-ordered pending queue with fast-fail admission control, the
// bounded worker pool, and the per-job extraction pipeline. It keeps the
// expensive extraction work off the HTTP request path while bounding the
// resources it may consume.
package task
