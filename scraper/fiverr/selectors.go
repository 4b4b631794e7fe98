package fiverr

import "github.com/cryarchy/fiverr-tools/browser"

// gigMain scopes every read on a gig page.
const gigMain = "#main-wrapper > .main-content .gig-page > .main"

// Site navigation.
var (
	homeLogoLoc = browser.Rule("#Header a.site-logo")
)

// Category menu.
var (
	topCategoriesLoc   = browser.Rule(`#CategoriesMenu .categories li[data-level="top"]`)
	menuScrollRightLoc = browser.Rule("#CategoriesMenu nav .right")
)

const (
	menuPanelRule     = ".menu-panel"
	menuBucketRule    = ".menu-bucket"
	bucketTitleRule   = ".linked-title:first-child :first-child"
	bucketLeafRule    = ".sub-menu-item:not(.linked-title):not(.spotlight-item)"
	firstLeafPosition = 2
)

// Listing page.
var (
	gigCardsLoc  = browser.Rule("#main-wrapper .listings-perseus .listing-container .gig-card-layout")
	pageLinksLoc = browser.Rule(`#main-wrapper .listings-perseus div:has([aria-label="Previous"]) > div > a:not([aria-label="Next"]):not([aria-label="Previous"])`)

	// the active page is the only page link without an href
	currentPageLoc = pageLinksLoc.Matching(":not([href])")
)

const (
	gigCardAnchorRule  = `a[aria-label="Go to gig"]`
	gigCardCountRule   = ".orca-rating .ratings-count .rating-count-number"
	pageLinkNumberRule = "p"
)

// Gig page.
var (
	gigTitleLoc       = browser.Rule(gigMain + " > .gig-overview > h1")
	gigRatingLoc      = browser.Rule(gigMain + " > .gig-overview > .seller-overview div:has(button) > strong")
	gigReviewCountLoc = browser.Rule(gigMain + " > .gig-overview > .seller-overview div:has(button) > button")
	gigDescriptionLoc = browser.Rule(gigMain + " > .gig-description > .description-wrapper > .description-content")
	gigMetadataLoc    = browser.Rule(gigMain + " > .gig-description > .metadata > .metadata-attribute")

	sellerRatingLoc      = browser.Rule(gigMain + " .seller-card .rating-score")
	sellerReviewCountLoc = browser.Rule(gigMain + " .seller-card .ratings-count > span")
	sellerLevelLoc       = browser.Rule(gigMain + " .seller-card div:has(.rating-score) div:has(p) > p")
	sellerDescriptionLoc = browser.Rule(gigMain + " .seller-card .seller-desc > .inner")
	sellerStatsLoc       = browser.Rule(gigMain + " .seller-card .user-stats > li")

	faqLoc = browser.Rule(gigMain + " article.faq-collapsible")

	reviewLoc          = browser.Rule(gigMain + " .gig-page-reviews .review-item-component-wrapper")
	reviewsShowMoreLoc = browser.Rule(gigMain + " .gig-page-reviews .reviews-wrap > div > button")
)

const (
	metadataNameRule    = "p"
	metadataValueRule   = "li"
	sellerStatValueRule = "strong"

	faqQuestionRule = ".faq-collapsible-title p"
	faqAnswerRule   = ".faq-collapsible-content p"

	reviewCountryRule       = ".country p"
	reviewRatingRule        = "strong.rating-score"
	reviewExpandRule        = ".expand-button button"
	reviewDescriptionRule   = ".review-description p"
	reviewPriceDurationRule = "div:has(p:nth-child(1)):has(p:nth-child(2):last-child) > p:first-child"
)

// Packages table.
var (
	packagesTable         = gigMain + " .gig-page-packages-table table tbody"
	packageHeadersLoc     = browser.Rule(packagesTable + " tr.package-type th")
	packageDescLoc        = browser.Rule(packagesTable + " tr.description td")
	packageDeliveryLoc    = browser.Rule(packagesTable + " tr.delivery-time td")
	packageCheckIconsLoc  = browser.Rule(packagesTable + " tr td span:has(svg)")
	packageFeatureRowsLoc = browser.Rule(packagesTable + " tr:not([class])")
)

const (
	packagePriceRule    = ".price-wrapper"
	packageTypeRule     = ".type"
	packageTitleRule    = ".title"
	packageCellRule     = "td"
	packageIconRule     = "span:has(svg)"
	packageDeliveryRule = "span:not([class])"
)

// Gallery.
var (
	galleryThumbnailsLoc = browser.Rule(gigMain + " .gallery-thumbnails a.thumbnail")
	inlineSlideLoc       = browser.Rule(gigMain + " .gallery-slideshow .current .slide")
	inlineFigureLoc      = inlineSlideLoc.Descendant("figure")

	modalCloseLoc     = browser.Rule(".modal-package .modal-close")
	modalSlideshowLoc = browser.Rule(".modal-package .slideshow-component")
	modalSlidesLoc    = modalSlideshowLoc.Descendant(".slideshow-slide")
	modalPrevLoc      = browser.Rule(".modal-package .modal-nav-prev")
	modalNextLoc      = browser.Rule(".modal-package .modal-nav-next")
)

const (
	slideRule       = ".slide"
	slideVideoClass = "slide-video"
	slidePlayRule   = "button"
	slideVideoRule  = "video"
	slideImageRule  = "img"
)
