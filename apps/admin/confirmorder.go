package main

import (
	"context"
	"fmt"

	"github.com/mekesim/backend/core/order"
	"github.com/mekesim/backend/core/user"
)

// confirmOrder marks an order paid on behalf of the operator, who acts with
// admin rights.
func (cli *commandLine) confirmOrder(number, method string) error {
	co := order.ConfirmOrder{OrderNumber: number, PaymentMethod: method}
	actor := user.Profile{Role: user.RoleAdmin}

	ord, err := cli.orderSvc.Confirm(context.Background(), actor, co)
	if err != nil {
		return err
	}
	fmt.Printf("order %s is now %s (%s)\n", ord.OrderNumber, ord.Status, ord.PaymentMethod.String)
	return nil
}
