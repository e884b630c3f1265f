// Package tstarbot provides the building blocks for
// training a real-time strategy agent with synchronous
// advantage actor-critic: lockstep vectorized
// environments and the observation model they share with
// the trainer in the a2c sub-package.
package tstarbot
