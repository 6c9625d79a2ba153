// Package search locates the instants at which a sampled quantity crosses a
// threshold, reverses sign or changes category.
//
// The pipeline is:
//
//  1. Scan walks a range with a fixed step and reports a Hit wherever a Trip
//     criterion fires between consecutive samples. Windows reports runs in
//     which a scalar stays within an orb of a target.
//  2. HalfWidth / PlanHalfWidth size a bracket from the local rate of change.
//  3. Locator bisects a Bracket down to one minute, remembering the sample
//     closest to the target.
//  4. Refiner fits a cubic through seven samples around the locator result
//     and searches it for the target below one-minute resolution.
//  5. Engine.Solve combines the two answers and rejects results whose error
//     stays above the configured threshold.
//
// Categorical quantities (sign index, moon quarter, lunar day) use Scan with
// StateChanged and LocateChange instead of steps 2-5.
//
// Every function here is pure apart from calls into the supplied probe. A
// probe error aborts the search and is returned unchanged.
package search
