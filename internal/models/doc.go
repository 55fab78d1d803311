// Package models defines the core domain entities of the Moneta engine.
//
// # Entities
//
//   - Account: a money container (checking, savings, credit, cash, investment)
//   - Transaction: a signed movement of money on one account
//   - Category: a node in the user's category tree
//   - Budget: a recurring spending limit attached to a category
//   - Goal: a savings target with optional funding account
//   - Rule: an automation rule (conditions + actions) applied to new transactions
//   - Snapshot: the versioned aggregate of all collections, the unit of persistence
//
// # Design principles
//
//  1. Entities reference each other by ID string, never by pointer, so the
//     object graph has no ownership cycles and serializes trivially.
//  2. Amounts are decimal.Decimal; balance arithmetic is exact, never float.
//  3. Enumerations are string-typed tags with Parse/String pairs so a type
//     switch over them can be checked for exhaustiveness.
//  4. Deletion is soft: entities referenced elsewhere are voided or
//     deactivated, never removed, so references can never dangle by mutation.
package models
