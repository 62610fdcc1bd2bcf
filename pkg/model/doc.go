// Package model holds the persistent entities of taskcore. The types carry no
// behaviour beyond small state predicates; lifecycle rules live in the
// service packages (session, rbac, tasks, audit, notifications).
package model
