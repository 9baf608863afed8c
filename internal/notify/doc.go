// Package notify renders notification templates with Liquid and delivers
// them through a Sender on a bounded background queue.
package notify
