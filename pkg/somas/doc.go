// Copyright The Somas Authors. All Rights Reserved.
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

// Package somas plans static offsets for the tensors of a computation
// graph into a single shared memory pool, ahead of execution. Tensors
// with provably disjoint lifetimes get overlapping pool ranges, so the
// pool ends up much smaller than the total footprint of all tensors.
// The primary interface to somas is the Planner type.
//
// # Graphs, Nodes, Tensors
//
// A Graph is assembled from nodes and tensors. A node is a single
// operation of the computation, runs on one execution stream, produces
// tensors and consumes tensors produced by other nodes. Tensors get
// dense ordinal ids in creation order and carry a size in bytes. Sizes
// are rounded up for alignment before any planning happens, so every
// non-empty tensor occupies a whole number of alignment units plus
// headroom for allocator bookkeeping.
//
// # Lifetimes
//
// The planner orders the graph topologically into a deterministic
// execution order, then classifies every tensor's lifetime: the closed
// interval from its producer to its last consumer. A tensor nobody
// consumes dies at its producer; this is legal and common for dead
// stores. When a tensor crosses execution streams its exact death
// point depends on cross-stream synchronization the planner cannot
// see, so its lifetime is conservatively extended until the consuming
// streams drain. A pluggable lifelong policy can additionally pin
// tensors, graph outputs by default, for the whole graph execution.
//
// # Conflicts
//
// Two tensors must be kept apart in the pool when both occupy pool
// bytes and their lifetimes intersect. The planner materializes this
// pairwise disjointness relation into a conflict matrix and records
// per-tensor constraint counts. Everything else is free to overlap,
// which is where the pool savings come from.
//
// # Contiguous Groups, Storage Aliases
//
// Some operations need their operands laid out back to back. Such
// tensors are declared a contiguous group: the group is solved as one
// aggregate block sized as the sum of its members and the solved base
// offset is distributed over the members in declaration order. Other
// operations deliberately reuse the storage of another tensor. Such a
// follower tensor is never solved on its own; it is assigned its
// leader's offset once the leader is placed, and the leader is kept
// apart from anything live while the follower is.
//
// # Solvers
//
// Offsets are assigned by a Solver. A solver receives descriptors in
// ascending id order together with the conflict matrix and returns an
// offset per descriptor plus the resulting pool size. The default
// best-fit solver tries several candidate placement orders and keeps
// the smallest pool; a sequential solver without any memory reuse is
// available as a baseline. The solver response is cross-checked
// against the request and, unless verification is turned off, the
// final offsets are cross-checked against the conflict matrix before
// the layout is returned.
package somas
