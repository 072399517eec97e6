// Package ir provides the shared data types of the block-document engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere: attribute numbers are int64
//   - Text offsets are UTF-16 code units
//   - JSON field names use camelCase to match the host wire format
//   - An empty string ID means "absent" for parentId, prevId, and nextId
package ir
