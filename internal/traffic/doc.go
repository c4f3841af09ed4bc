// Package traffic holds the occupancy grid and the one-step movement planner.
//
// Area is the only source of truth for which client sits in which cell. Each
// cell carries a fixed number of slots; a slot holds a client id or EmptySlot.
// ControlLogic admits clients on the entry column (x = 0) and advances them one
// cell per call toward a target using a greedy scan of the 3x3 neighbourhood.
//
// Neither type locks. Surfaces that serve concurrent callers go through
// Controller, which serialises whole commands so that the remove/place pair of
// a move is never observed half done.
package traffic
