// Copyright 2025 Kadir Pekel
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

// Package ids provides UUID-v4-backed newtypes for every long-lived entity
// in the runtime, plus the single tagged error kind shared across packages.
package ids

import "github.com/google/uuid"

// AgentId identifies a long-lived agent bound to one LLM configuration.
type AgentId string

// NodeId identifies one node within a WorkflowGraph.
type NodeId string

// WorkflowId identifies one workflow graph.
type WorkflowId string

// MemoryId identifies one memory entry, in either memory tier.
type MemoryId string

// SessionId identifies a working-memory session.
type SessionId string

// ToolCallId identifies one LLM-issued tool invocation.
type ToolCallId string

// NewAgentId mints a fresh random AgentId.
func NewAgentId() AgentId { return AgentId(uuid.NewString()) }

// NewNodeId mints a fresh random NodeId.
func NewNodeId() NodeId { return NodeId(uuid.NewString()) }

// NewWorkflowId mints a fresh random WorkflowId.
func NewWorkflowId() WorkflowId { return WorkflowId(uuid.NewString()) }

// NewMemoryId mints a fresh random MemoryId.
func NewMemoryId() MemoryId { return MemoryId(uuid.NewString()) }

// NewSessionId mints a fresh random SessionId.
func NewSessionId() SessionId { return SessionId(uuid.NewString()) }

// NewToolCallId mints a fresh random ToolCallId.
func NewToolCallId() ToolCallId { return ToolCallId(uuid.NewString()) }

func (i AgentId) String() string    { return string(i) }
func (i NodeId) String() string     { return string(i) }
func (i WorkflowId) String() string { return string(i) }
func (i MemoryId) String() string   { return string(i) }
func (i SessionId) String() string  { return string(i) }
func (i ToolCallId) String() string { return string(i) }
