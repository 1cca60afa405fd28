// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package access defines the actor model and the access predicates that
// gate collection operations.
package access

import (
	"context"
	"errors"
)

// Domain errors
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("you are not allowed to perform this action")
)

// Operation identifies the kind of collection operation being gated
type Operation string

// Gated operations
const (
	OpAdmin  Operation = "admin"
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Operations lists every gated operation kind.
var Operations = []Operation{OpAdmin, OpCreate, OpRead, OpUpdate, OpDelete}

// Actor is the authenticated principal performing a request
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Request is the input handed to a Predicate
type Request struct {
	Actor     *Actor
	Operation Operation
}

// Predicate decides whether the request may proceed.
type Predicate func(ctx context.Context, req Request) bool

// Authenticated allows any request that carries an actor.
func Authenticated(_ context.Context, req Request) bool {
	return req.Actor != nil && req.Actor.ID != ""
}

// Check evaluates p for op against the actor carried by ctx.
// A nil predicate denies. The returned error distinguishes a missing actor
// from an actor that was refused.
func Check(ctx context.Context, p Predicate, op Operation) error {
	actor := ActorFromContext(ctx)
	if p != nil && p(ctx, Request{Actor: actor, Operation: op}) {
		return nil
	}
	if actor == nil {
		return ErrUnauthenticated
	}
	return ErrForbidden
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves the actor from context, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	if actor, ok := ctx.Value(actorKey).(*Actor); ok && actor != nil {
		return actor
	}
	return nil
}

// ActorID returns the actor ID from context, or an empty string.
func ActorID(ctx context.Context) string {
	if actor := ActorFromContext(ctx); actor != nil {
		return actor.ID
	}
	return ""
}
