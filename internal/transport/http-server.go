package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/db"
	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/export"
	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/service"
)

const shoppingListTitle = "Shopping list"

type (
	RegisterReq struct {
		Email     string `json:"email" validate:"required,email"`
		Username  string `json:"username" validate:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Password  string `json:"password" validate:"required,min=8"`
	}

	LoginReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	TokenResp struct {
		Token string `json:"token"`
	}

	IngredientLineReq struct {
		ID     uint64 `json:"id" validate:"required"`
		Amount int    `json:"amount" validate:"required"`
	}

	RecipeCreateReq struct {
		Name        string              `json:"name" validate:"required"`
		Text        string              `json:"text" validate:"required"`
		Image       string              `json:"image" validate:"required"`
		CookingTime int                 `json:"cooking_time" validate:"required"`
		Tags        []uint64            `json:"tags" validate:"required"`
		Ingredients []IngredientLineReq `json:"ingredients" validate:"required,dive"`
	}

	RecipeUpdateReq struct {
		Name        *string             `json:"name"`
		Text        *string             `json:"text"`
		Image       *string             `json:"image"`
		CookingTime *int                `json:"cooking_time"`
		Tags        []uint64            `json:"tags"`
		Ingredients []IngredientLineReq `json:"ingredients"`
	}

	UserResp struct {
		ID           uint64 `json:"id"`
		Email        string `json:"email"`
		Username     string `json:"username"`
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		IsSubscribed bool   `json:"is_subscribed"`
	}

	TagResp struct {
		ID    uint64 `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
		Slug  string `json:"slug"`
	}

	IngredientResp struct {
		ID              uint64 `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
	}

	RecipeIngredientResp struct {
		ID              uint64 `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          int    `json:"amount"`
	}

	RecipeShortResp struct {
		ID          uint64 `json:"id"`
		Name        string `json:"name"`
		Image       string `json:"image"`
		CookingTime int    `json:"cooking_time"`
	}

	RecipeResp struct {
		ID               uint64                 `json:"id"`
		Tags             []TagResp              `json:"tags"`
		Author           UserResp               `json:"author"`
		Ingredients      []RecipeIngredientResp `json:"ingredients"`
		IsFavorited      bool                   `json:"is_favorited"`
		IsInShoppingCart bool                   `json:"is_in_shopping_cart"`
		Name             string                 `json:"name"`
		Image            string                 `json:"image"`
		Text             string                 `json:"text"`
		CookingTime      int                    `json:"cooking_time"`
	}

	SubscriptionResp struct {
		ID           uint64            `json:"id"`
		Email        string            `json:"email"`
		Username     string            `json:"username"`
		FirstName    string            `json:"first_name"`
		LastName     string            `json:"last_name"`
		IsSubscribed bool              `json:"is_subscribed"`
		Recipes      []RecipeShortResp `json:"recipes"`
		RecipesCount int64             `json:"recipes_count"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		users       *service.UserService
		catalog     *service.CatalogService
		recipes     *service.RecipeService
		memberships *service.MembershipService
		shopping    *service.ShoppingService
		follows     *service.FollowService
		renderer    export.Renderer
	}
)

func NewHTTPServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	users *service.UserService,
	catalog *service.CatalogService,
	recipes *service.RecipeService,
	memberships *service.MembershipService,
	shopping *service.ShoppingService,
	follows *service.FollowService,
	renderer export.Renderer,
	logger *zap.SugaredLogger,
) *HTTPServer {
	e := echo.New()

	instance := HTTPServer{
		users:       users,
		catalog:     catalog,
		recipes:     recipes,
		memberships: memberships,
		shopping:    shopping,
		follows:     follows,
		renderer:    renderer,
	}

	e.POST("/auth/register", instance.Register)
	e.POST("/auth/login", instance.Login)

	tagG := e.Group("/tag")
	tagG.GET("", instance.TagList)
	tagG.GET("/:id", instance.TagGet)

	ingredientG := e.Group("/ingredient")
	ingredientG.GET("", instance.IngredientList)
	ingredientG.GET("/:id", instance.IngredientGet)

	recipeG := e.Group("/recipe")
	recipeG.GET("", instance.RecipeList)
	recipeG.POST("", instance.RecipeCreate)
	recipeG.GET("/download_shopping_cart", instance.DownloadShoppingCart)
	recipeG.GET("/:id", instance.RecipeGet)
	recipeG.PATCH("/:id", instance.RecipeUpdate)
	recipeG.DELETE("/:id", instance.RecipeDelete)
	recipeG.POST("/:id/favorite", instance.FavoriteAdd)
	recipeG.DELETE("/:id/favorite", instance.FavoriteRemove)
	recipeG.POST("/:id/shopping_cart", instance.CartAdd)
	recipeG.DELETE("/:id/shopping_cart", instance.CartRemove)

	userG := e.Group("/user")
	userG.GET("/subscriptions", instance.SubscriptionList)
	userG.POST("/:id/subscribe", instance.Subscribe)
	userG.DELETE("/:id/subscribe", instance.Unsubscribe)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(instance.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal("shutting down the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return &instance
}

func (s *HTTPServer) Register(c echo.Context) error {
	req := RegisterReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.users.Register(service.RegisterParams{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, &TokenResp{Token: token})
}

func (s *HTTPServer) Login(c echo.Context) error {
	req := LoginReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.users.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrLoginUserNotFound) || errors.Is(err, service.ErrLoginPasswordDoesNotMatch) {
			return c.JSON(http.StatusBadRequest, errorPayload("invalid credentials", ""))
		}
		return err
	}
	return c.JSON(http.StatusOK, &TokenResp{Token: token})
}

func (s *HTTPServer) TagList(c echo.Context) error {
	tags, err := s.catalog.Tags()
	if err != nil {
		return serviceError(c, err)
	}
	resp := make([]TagResp, len(tags))
	for i := range tags {
		resp[i] = tagResp(tags[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) TagGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	tag, err := s.catalog.Tag(id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, tagResp(*tag))
}

func (s *HTTPServer) IngredientList(c echo.Context) error {
	ingredients, err := s.catalog.Ingredients(c.QueryParam("name"))
	if err != nil {
		return serviceError(c, err)
	}
	resp := make([]IngredientResp, len(ingredients))
	for i := range ingredients {
		resp[i] = ingredientResp(ingredients[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) IngredientGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	ingredient, err := s.catalog.Ingredient(id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, ingredientResp(*ingredient))
}

func (s *HTTPServer) RecipeList(c echo.Context) error {
	f := service.RecipeFilter{
		TagSlugs: c.QueryParams()["tags"],
		ViewerID: s.viewerID(c),
	}
	if raw := c.QueryParam("author"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorPayload("must be a positive integer", "author"))
		}
		f.AuthorID = &id
	}
	f.Favorited = parseBoolFlag(c.QueryParam("is_favorited"))
	f.InShoppingCart = parseBoolFlag(c.QueryParam("is_in_shopping_cart"))

	views, err := s.recipes.List(f)
	if err != nil {
		return serviceError(c, err)
	}

	resp := make([]RecipeResp, len(views))
	for i := range views {
		r, err := s.recipeResp(views[i], f.ViewerID)
		if err != nil {
			return serviceError(c, err)
		}
		resp[i] = r
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) RecipeCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := RecipeCreateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	model, err := s.recipes.Create(user, service.RecipeCreate{
		Name:        req.Name,
		Text:        req.Text,
		Image:       req.Image,
		CookingTime: req.CookingTime,
		TagIDs:      req.Tags,
		Ingredients: ingredientLines(req.Ingredients),
	})
	if err != nil {
		return serviceError(c, err)
	}

	viewerID := &user.ID
	resp, err := s.recipeResp(service.RecipeView{Recipe: *model}, viewerID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *HTTPServer) RecipeGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	view, err := s.recipes.Get(id, s.viewerID(c))
	if err != nil {
		return serviceError(c, err)
	}
	resp, err := s.recipeResp(*view, s.viewerID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) RecipeUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := RecipeUpdateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	update := service.RecipeUpdate{
		Name:        req.Name,
		Text:        req.Text,
		Image:       req.Image,
		CookingTime: req.CookingTime,
		TagIDs:      req.Tags,
	}
	if req.Ingredients != nil {
		update.Ingredients = ingredientLines(req.Ingredients)
	}

	model, err := s.recipes.Update(id, user, update)
	if err != nil {
		return serviceError(c, err)
	}

	resp, err := s.recipeResp(service.RecipeView{Recipe: *model}, &user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) RecipeDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.recipes.Delete(id, user); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) FavoriteAdd(c echo.Context) error {
	return s.membershipAdd(c, s.memberships.AddFavorite)
}

func (s *HTTPServer) FavoriteRemove(c echo.Context) error {
	return s.membershipRemove(c, s.memberships.RemoveFavorite)
}

func (s *HTTPServer) CartAdd(c echo.Context) error {
	return s.membershipAdd(c, s.memberships.AddToCart)
}

func (s *HTTPServer) CartRemove(c echo.Context) error {
	return s.membershipRemove(c, s.memberships.RemoveFromCart)
}

func (s *HTTPServer) membershipAdd(c echo.Context, add func(uint64, uint64) (*db.Recipe, error)) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	recipe, err := add(user.ID, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, recipeShortResp(*recipe))
}

func (s *HTTPServer) membershipRemove(c echo.Context, remove func(uint64, uint64) error) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := remove(user.ID, id); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) DownloadShoppingCart(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	lines, err := s.shopping.Consolidate(user.ID)
	if err != nil {
		return serviceError(c, err)
	}

	blob, err := s.renderer.Render(shoppingListTitle, lines)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", s.renderer.FileName()))
	return c.Blob(http.StatusOK, s.renderer.ContentType(), blob)
}

func (s *HTTPServer) Subscribe(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	entry, err := s.follows.Follow(user.ID, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, subscriptionResp(*entry))
}

func (s *HTTPServer) Unsubscribe(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.follows.Unfollow(user.ID, id); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) SubscriptionList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	limit, err := ParseRecipesLimit(c.QueryParam("recipes_limit"))
	if err != nil {
		return serviceError(c, err)
	}

	entries, err := s.follows.ListFollowing(user.ID, limit)
	if err != nil {
		return serviceError(c, err)
	}

	resp := make([]SubscriptionResp, len(entries))
	for i := range entries {
		resp[i] = subscriptionResp(entries[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := ""
		for key, values := range c.Request().Header {
			if strings.ToLower(key) == "x-token" {
				token = values[0]
				break
			}
		}
		if token == "" {
			if IsPublic(c.Request().Method, c.Path()) {
				return next(c)
			}
			return c.NoContent(http.StatusUnauthorized)
		}
		user, err := s.users.ByToken(token)
		if err != nil {
			c.Logger().Error(errors.Wrap(err, "find user in db"))
			return c.NoContent(http.StatusUnauthorized)
		}

		c.Set("user", user)
		return next(c)
	}
}

// IsPublic reports whether a route is reachable without a token. Browsing the
// catalogs and the recipe feed stays anonymous, everything mutating or
// per-user requires auth.
func IsPublic(method, path string) bool {
	if path == "/ping" || strings.HasPrefix(path, "/auth/") {
		return true
	}
	if method != http.MethodGet {
		return false
	}
	switch path {
	case "/tag", "/tag/:id", "/ingredient", "/ingredient/:id", "/recipe", "/recipe/:id":
		return true
	}
	return false
}

////////

func (s *HTTPServer) recipeResp(view service.RecipeView, viewerID *uint64) (RecipeResp, error) {
	r := view.Recipe

	authorSubscribed := false
	if viewerID != nil {
		subscribed, err := s.follows.IsFollowing(*viewerID, r.AuthorID)
		if err != nil {
			return RecipeResp{}, err
		}
		authorSubscribed = subscribed
	}

	tags := make([]TagResp, len(r.Tags))
	for i := range r.Tags {
		tags[i] = tagResp(r.Tags[i])
	}
	lines := make([]RecipeIngredientResp, len(r.Ingredients))
	for i := range r.Ingredients {
		lines[i] = RecipeIngredientResp{
			ID:              r.Ingredients[i].IngredientID,
			Name:            r.Ingredients[i].Ingredient.Name,
			MeasurementUnit: r.Ingredients[i].Ingredient.MeasurementUnit,
			Amount:          r.Ingredients[i].Amount,
		}
	}

	return RecipeResp{
		ID:               r.ID,
		Tags:             tags,
		Author:           userResp(r.Author, authorSubscribed),
		Ingredients:      lines,
		IsFavorited:      view.IsFavorited,
		IsInShoppingCart: view.IsInShoppingCart,
		Name:             r.Name,
		Image:            r.Image,
		Text:             r.Text,
		CookingTime:      r.CookingTime,
	}, nil
}

func userResp(u db.User, isSubscribed bool) UserResp {
	return UserResp{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: isSubscribed,
	}
}

func tagResp(t db.Tag) TagResp {
	return TagResp{
		ID:    t.ID,
		Name:  t.Name,
		Color: t.Color,
		Slug:  t.Slug,
	}
}

func ingredientResp(i db.Ingredient) IngredientResp {
	return IngredientResp{
		ID:              i.ID,
		Name:            i.Name,
		MeasurementUnit: i.MeasurementUnit,
	}
}

func recipeShortResp(r db.Recipe) RecipeShortResp {
	return RecipeShortResp{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
	}
}

func subscriptionResp(entry service.FollowedUser) SubscriptionResp {
	recipes := make([]RecipeShortResp, len(entry.Recipes))
	for i := range entry.Recipes {
		recipes[i] = recipeShortResp(entry.Recipes[i])
	}
	return SubscriptionResp{
		ID:           entry.User.ID,
		Email:        entry.User.Email,
		Username:     entry.User.Username,
		FirstName:    entry.User.FirstName,
		LastName:     entry.User.LastName,
		IsSubscribed: true,
		Recipes:      recipes,
		RecipesCount: entry.RecipesCount,
	}
}

func ingredientLines(reqs []IngredientLineReq) []service.IngredientLine {
	lines := make([]service.IngredientLine, len(reqs))
	for i := range reqs {
		lines[i] = service.IngredientLine{
			IngredientID: reqs[i].ID,
			Amount:       reqs[i].Amount,
		}
	}
	return lines
}

// ParseRecipesLimit validates the recipes_limit query parameter. An empty
// value means no limit; anything else must be a positive integer.
func ParseRecipesLimit(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return nil, &service.ValidationError{Field: "recipes_limit", Detail: "must be a positive integer"}
	}
	return &limit, nil
}

func parseBoolFlag(raw string) bool {
	return raw == "1" || strings.EqualFold(raw, "true")
}

func errorPayload(detail, field string) map[string]string {
	payload := map[string]string{"detail": detail}
	if field != "" {
		payload["field"] = field
	}
	return payload
}

// serviceError maps the service error taxonomy onto HTTP responses. Unknown
// errors bubble up to echo's 500 handler.
func serviceError(c echo.Context, err error) error {
	var validationErr *service.ValidationError
	var conflictErr *service.ConflictError
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, errorPayload(validationErr.Detail, validationErr.Field))
	case errors.As(err, &conflictErr):
		return c.JSON(http.StatusBadRequest, errorPayload(conflictErr.Detail, ""))
	case errors.Is(err, service.ErrSelfFollow):
		return c.JSON(http.StatusBadRequest, errorPayload(err.Error(), ""))
	case errors.Is(err, service.ErrPermission):
		return c.JSON(http.StatusForbidden, errorPayload(err.Error(), ""))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorPayload(err.Error(), ""))
	}
	return err
}

func (s *HTTPServer) viewerID(c echo.Context) *uint64 {
	user, ok := c.Get("user").(*db.User)
	if !ok || user == nil {
		return nil
	}
	return &user.ID
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c echo.Context) (*db.User, error) {
	user, ok := c.Get("user").(*db.User)
	if !ok || user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no user found in context")
	}
	return user, nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid path param '%s'", name))
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid path param '%s'", name))
	}
	return vv, nil
}
