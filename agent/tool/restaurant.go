package tool

import (
	"context"
	"errors"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
)

const restaurantUnavailable = "restaurant profile is not available right now"

func executeGetRestaurant(ctx context.Context, deps Deps, tc contractx.ToolContext) (contractx.ToolResult, error) {
	profile, err := deps.Restaurants.GetRestaurantProfile(ctx, tc.RestaurantID)
	if err != nil {
		if errors.Is(err, contractx.ErrRestaurantNotFound) {
			return contractx.ToolResult{Tool: ToolGetRestaurant, Error: restaurantUnavailable}, nil
		}
		return contractx.ToolResult{Tool: ToolGetRestaurant, Error: err.Error()}, nil
	}
	return contractx.ToolResult{Tool: ToolGetRestaurant, Result: profile}, nil
}

func executeGetRestaurantFoodItems(ctx context.Context, deps Deps, tc contractx.ToolContext) (contractx.ToolResult, error) {
	items, err := deps.Restaurants.GetMenuItems(ctx, tc.RestaurantID)
	if err != nil {
		return contractx.ToolResult{Tool: ToolGetRestaurantFoodItems, Error: err.Error()}, nil
	}
	if len(items) == 0 {
		return contractx.ToolResult{Tool: ToolGetRestaurantFoodItems, Error: "no menu items are published for this restaurant"}, nil
	}
	return contractx.ToolResult{Tool: ToolGetRestaurantFoodItems, Result: items}, nil
}
