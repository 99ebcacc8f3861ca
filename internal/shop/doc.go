// Package shop implements the shop's users, products and orders on top of the
// collection store, including the stock adjustment run when an order is placed.
package shop
